package commands

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barflyapp/barfly-data/internal/apperr"
	"github.com/barflyapp/barfly-data/internal/bac"
	"github.com/barflyapp/barfly-data/internal/checkin"
	"github.com/barflyapp/barfly-data/internal/clock"
	"github.com/barflyapp/barfly-data/internal/session"
	"github.com/barflyapp/barfly-data/internal/users"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var commandsAt = time.Date(2025, 5, 1, 20, 0, 0, 0, time.UTC)

// --------------------------------------------------------------------------
// Parsing
// --------------------------------------------------------------------------

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Kind
	}{
		{"start", "start", KindStart},
		{"start uppercase", "START", KindStart},
		{"start padded", "  start  ", KindStart},
		{"stop", "stop", KindStop},
		{"check", "Check", KindCheck},
		{"drink", "drink hazy ipa; 6.5; 16", KindDrink},
		{"empty", "", KindUnknown},
		{"gibberish", "make me a sandwich", KindUnknown},
		{"drink missing parts", "drink hazy ipa; 6.5", KindUnknown},
		{"drink bad abv", "drink hazy ipa; lots; 16", KindUnknown},
		{"drink abv out of range", "drink hazy ipa; 250; 16", KindUnknown},
		{"drink zero size", "drink hazy ipa; 6.5; 0", KindUnknown},
		{"drink empty name", "drink ; 6.5; 16", KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text).Kind)
		})
	}
}

func TestParseDrinkArgs(t *testing.T) {
	cmd := Parse("drink Hazy IPA; 6.5%; 16")
	require.Equal(t, KindDrink, cmd.Kind)
	require.NotNil(t, cmd.Drink)
	assert.Equal(t, "Hazy IPA", cmd.Drink.Name)
	assert.InDelta(t, 0.065, cmd.Drink.ABV, 1e-9)
	assert.Equal(t, 16.0, cmd.Drink.SizeOz)
}

// --------------------------------------------------------------------------
// Execution
// --------------------------------------------------------------------------

type memSessions struct {
	mu      sync.Mutex
	records map[string]*session.Record
}

func (s *memSessions) Insert(ctx context.Context, r *session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	cp := *r
	s.records[r.ID] = &cp
	return nil
}

func (s *memSessions) GetByID(ctx context.Context, id string) (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, apperr.ErrNotFound
}

func (s *memSessions) RunningByUser(ctx context.Context, userID string) (*session.Record, error) {
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

func (s *memSessions) LatestByUser(ctx context.Context, userID string) (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *session.Record
	for _, r := range s.records {
		if r.UserID == userID && (latest == nil || r.StartTime.After(latest.StartTime)) {
			latest = r
		}
	}
	if latest == nil {
		return nil, apperr.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *memSessions) ListByUser(ctx context.Context, userID string) ([]session.Record, error) {
	return nil, nil
}

func (s *memSessions) ListRunning(ctx context.Context) ([]session.Record, error) {
	return nil, nil
}

func (s *memSessions) SetStopTime(ctx context.Context, id string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		stop := t
		r.StopTime = &stop
		return nil
	}
	return apperr.ErrNotFound
}

func (s *memSessions) AdvanceWatermark(ctx context.Context, id string, t time.Time) error {
	return nil
}

type memSamples struct {
	mu      sync.Mutex
	samples []session.Sample
}

func (s *memSamples) Insert(ctx context.Context, sample *session.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, *sample)
	return nil
}

func (s *memSamples) Latest(ctx context.Context, userID string) (*session.Sample, error) {
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

func (s *memSamples) Leaderboard(ctx context.Context) ([]session.LeaderboardRow, error) {
	return nil, nil
}

type memCheckins struct {
	mu     sync.Mutex
	events []checkin.Checkin
}

func (s *memCheckins) Insert(ctx context.Context, c *checkin.Checkin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *c)
	return nil
}

func (s *memCheckins) InsertBatch(ctx context.Context, events []checkin.Checkin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *memCheckins) ListWindow(ctx context.Context, userID string, from, to time.Time) ([]checkin.Checkin, error) {
	return nil, nil
}

func (s *memCheckins) ListSince(ctx context.Context, userID string, since time.Time) ([]checkin.Checkin, error) {
	return nil, nil
}

type memUsers struct {
	users map[string]*users.User
}

func (s *memUsers) GetByID(ctx context.Context, id string) (*users.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, apperr.ErrNotFound
}

func (s *memUsers) GetByPhone(ctx context.Context, phone string) (*users.User, error) {
	return nil, apperr.ErrNotFound
}

func (s *memUsers) GetByMessenger(ctx context.Context, messengerID string) (*users.User, error) {
	return nil, apperr.ErrNotFound
}

func (s *memUsers) Followers(ctx context.Context, userID string) ([]users.User, error) {
	return nil, nil
}

type noopNotifier struct{}

func (noopNotifier) FanOut(ctx context.Context, user *users.User, message string, source session.Source, at time.Time) error {
	return nil
}

func (noopNotifier) Notify(ctx context.Context, user *users.User, message string, source session.Source, at time.Time) error {
	return nil
}

type handlerFixture struct {
	handler  *Handler
	checkins *memCheckins
	samples  *memSamples
	clock    *clock.Fake
	user     *users.User
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	user := &users.User{ID: "u1", Username: "norm", WeightLbs: 185, Gender: bac.GenderMale}
	sessions := &memSessions{records: map[string]*session.Record{}}
	samples := &memSamples{}
	checkins := &memCheckins{}
	clk := clock.NewFake(commandsAt)
	scheduler := session.NewScheduler(testLogger)

	monitor := session.NewMonitor(session.MonitorConfig{
		Sessions:  sessions,
		Samples:   samples,
		Checkins:  checkins,
		Users:     &memUsers{users: map[string]*users.User{"u1": user}},
		Notifier:  noopNotifier{},
		Scheduler: scheduler,
		Clock:     clk,
		Logger:    testLogger,

		// Keeps the background tick from stopping the session mid-test.
		SoberGrace: 24 * time.Hour,
	})
	controller := session.NewController(sessions, monitor, scheduler, noopNotifier{}, clk, testLogger)

	return &handlerFixture{
		handler:  NewHandler(controller, checkins, samples, clk, testLogger),
		checkins: checkins,
		samples:  samples,
		clock:    clk,
		user:     user,
	}
}

func TestExecuteStart(t *testing.T) {
	f := newHandlerFixture(t)

	reply := f.handler.Execute(context.Background(), f.user, "start", session.SourceSMS)
	assert.Contains(t, reply, "norm")
	assert.Contains(t, reply, "started")

	// A second start reports the running session.
	reply = f.handler.Execute(context.Background(), f.user, "start", session.SourceSMS)
	assert.Contains(t, reply, "already have a running session")
}

func TestExecuteStopWithoutSession(t *testing.T) {
	f := newHandlerFixture(t)

	reply := f.handler.Execute(context.Background(), f.user, "stop", session.SourceSMS)
	assert.Contains(t, reply, "don't have a running session")
}

func TestExecuteStartThenStop(t *testing.T) {
	f := newHandlerFixture(t)

	f.handler.Execute(context.Background(), f.user, "start", session.SourceSMS)
	f.clock.Advance(time.Hour)
	reply := f.handler.Execute(context.Background(), f.user, "stop", session.SourceSMS)
	assert.Contains(t, reply, "ended")
}

func TestExecuteCheck(t *testing.T) {
	f := newHandlerFixture(t)

	// No samples yet.
	reply := f.handler.Execute(context.Background(), f.user, "check", session.SourceSMS)
	assert.Contains(t, reply, "No BAC estimate yet")

	f.samples.Insert(context.Background(), &session.Sample{
		UserID: "u1", SampledAt: commandsAt, BAC: 0.042,
	})
	reply = f.handler.Execute(context.Background(), f.user, "check", session.SourceSMS)
	assert.Contains(t, reply, "0.042")
}

func TestExecuteDrink(t *testing.T) {
	f := newHandlerFixture(t)

	reply := f.handler.Execute(context.Background(), f.user, "drink hazy ipa; 6.5; 16", session.SourceMessenger)
	assert.Contains(t, reply, "hazy ipa")

	require.Len(t, f.checkins.events, 1)
	ev := f.checkins.events[0]
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, commandsAt, ev.DrankAt)
	assert.InDelta(t, 0.065, ev.ABV, 1e-9)
	assert.Equal(t, 16.0, ev.SizeOz)
}

func TestExecuteUnknown(t *testing.T) {
	f := newHandlerFixture(t)

	reply := f.handler.Execute(context.Background(), f.user, "dance", session.SourceSMS)
	assert.Contains(t, reply, "Didn't catch that")
}
