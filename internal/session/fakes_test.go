package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/barflyapp/barfly-data/internal/apperr"
	"github.com/barflyapp/barfly-data/internal/checkin"
	"github.com/barflyapp/barfly-data/internal/users"
)

// --------------------------------------------------------------------------
// In-memory session store
// --------------------------------------------------------------------------

type memSessionStore struct {
	mu      sync.Mutex
	records map[string]*Record

	failInsert  bool
	failSetStop bool
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{records: map[string]*Record{}}
}

func (s *memSessionStore) Insert(ctx context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert {
		return fmt.Errorf("insert failed")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	cp := *r
	s.records[r.ID] = &cp
	return nil
}

func (s *memSessionStore) GetByID(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memSessionStore) RunningByUser(ctx context.Context, userID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.UserID == userID && r.StopTime == nil {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *memSessionStore) LatestByUser(ctx context.Context, userID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *Record
	for _, r := range s.records {
		if r.UserID != userID {
			continue
		}
		if latest == nil || r.StartTime.After(latest.StartTime) {
			latest = r
		}
	}
	if latest == nil {
		return nil, apperr.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *memSessionStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memSessionStore) ListRunning(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.records {
		if r.StopTime == nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memSessionStore) SetStopTime(ctx context.Context, id string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSetStop {
		return fmt.Errorf("set stop time failed")
	}
	r, ok := s.records[id]
	if !ok {
		return apperr.ErrNotFound
	}
	stop := t
	r.StopTime = &stop
	return nil
}

func (s *memSessionStore) AdvanceWatermark(ctx context.Context, id string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if r.LastModified == nil || t.After(*r.LastModified) {
		mark := t
		r.LastModified = &mark
	}
	return nil
}

func (s *memSessionStore) stopTimeOf(id string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		return r.StopTime
	}
	return nil
}

func (s *memSessionStore) watermarkOf(id string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		return r.LastModified
	}
	return nil
}

// --------------------------------------------------------------------------
// In-memory sample store
// --------------------------------------------------------------------------

type memSampleStore struct {
	mu      sync.Mutex
	samples []Sample
}

func (s *memSampleStore) Insert(ctx context.Context, sample *Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, *sample)
	return nil
}

func (s *memSampleStore) Latest(ctx context.Context, userID string) (*Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.samples) - 1; i >= 0; i-- {
		if s.samples[i].UserID == userID {
			cp := s.samples[i]
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *memSampleStore) Leaderboard(ctx context.Context) ([]LeaderboardRow, error) {
	return nil, nil
}

func (s *memSampleStore) all() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.samples...)
}

// --------------------------------------------------------------------------
// In-memory checkin store
// --------------------------------------------------------------------------

type memCheckinStore struct {
	mu        sync.Mutex
	events    []checkin.Checkin
	failBatch bool
}

func (s *memCheckinStore) Insert(ctx context.Context, c *checkin.Checkin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *c)
	return nil
}

func (s *memCheckinStore) InsertBatch(ctx context.Context, events []checkin.Checkin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failBatch {
		return fmt.Errorf("batch insert failed")
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *memCheckinStore) ListWindow(ctx context.Context, userID string, from, to time.Time) ([]checkin.Checkin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []checkin.Checkin
	for _, ev := range s.events {
		if ev.UserID != userID || ev.DrankAt.Before(from) || ev.DrankAt.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *memCheckinStore) ListSince(ctx context.Context, userID string, since time.Time) ([]checkin.Checkin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []checkin.Checkin
	for _, ev := range s.events {
		if ev.UserID == userID && !ev.DrankAt.Before(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// --------------------------------------------------------------------------
// In-memory user store
// --------------------------------------------------------------------------

type memUserStore struct {
	mu        sync.Mutex
	users     map[string]*users.User
	followers map[string][]users.User
}

func newMemUserStore(us ...*users.User) *memUserStore {
	s := &memUserStore{users: map[string]*users.User{}, followers: map[string][]users.User{}}
	for _, u := range us {
		s.users[u.ID] = u
	}
	return s
}

func (s *memUserStore) GetByID(ctx context.Context, id string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return u, nil
}

func (s *memUserStore) GetByPhone(ctx context.Context, phone string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.PhoneNumber != nil && *u.PhoneNumber == phone {
			return u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *memUserStore) GetByMessenger(ctx context.Context, messengerID string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.MessengerID != nil && *u.MessengerID == messengerID {
			return u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *memUserStore) Followers(ctx context.Context, userID string) ([]users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.followers[userID], nil
}

func (s *memUserStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// --------------------------------------------------------------------------
// Recording notifier and stub provider
// --------------------------------------------------------------------------

type notifierCall struct {
	userID  string
	message string
	source  Source
	fanOut  bool
}

type recordingNotifier struct {
	mu      sync.Mutex
	calls   []notifierCall
	failAll bool
}

func (n *recordingNotifier) FanOut(ctx context.Context, user *users.User, message string, source Source, at time.Time) error {
	return n.record(user, message, source, true)
}

func (n *recordingNotifier) Notify(ctx context.Context, user *users.User, message string, source Source, at time.Time) error {
	return n.record(user, message, source, false)
}

func (n *recordingNotifier) record(user *users.User, message string, source Source, fanOut bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failAll {
		return fmt.Errorf("notifier unavailable")
	}
	n.calls = append(n.calls, notifierCall{userID: user.ID, message: message, source: source, fanOut: fanOut})
	return nil
}

func (n *recordingNotifier) all() []notifierCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifierCall(nil), n.calls...)
}

type stubProvider struct {
	mu     sync.Mutex
	events []checkin.Checkin
	sinces []time.Time
}

func (p *stubProvider) Fetch(ctx context.Context, link *checkin.Link, since time.Time) []checkin.Checkin {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinces = append(p.sinces, since)
	return append([]checkin.Checkin(nil), p.events...)
}

func (p *stubProvider) requestedSinces() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Time(nil), p.sinces...)
}
