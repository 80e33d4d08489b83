package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barflyapp/barfly-data/internal/bac"
	"github.com/barflyapp/barfly-data/internal/checkin"
	"github.com/barflyapp/barfly-data/internal/clock"
	"github.com/barflyapp/barfly-data/internal/users"
)

var monitorStart = time.Date(2025, 5, 1, 20, 0, 0, 0, time.UTC)

type monitorFixture struct {
	sessions *memSessionStore
	samples  *memSampleStore
	checkins *memCheckinStore
	users    *memUserStore
	provider *stubProvider
	notifier *recordingNotifier
	clock    *clock.Fake
	monitor  *Monitor
	user     *users.User
	rec      *Record
	job      *job
}

// newMonitorFixture wires a monitor over in-memory stores with one running
// session for a 185 lb male user, started at monitorStart.
func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()

	user := &users.User{ID: "u1", Username: "norm", WeightLbs: 185, Gender: bac.GenderMale}
	f := &monitorFixture{
		sessions: newMemSessionStore(),
		samples:  &memSampleStore{},
		checkins: &memCheckinStore{},
		users:    newMemUserStore(user),
		provider: &stubProvider{},
		notifier: &recordingNotifier{},
		clock:    clock.NewFake(monitorStart),
		user:     user,
	}
	f.monitor = NewMonitor(MonitorConfig{
		Sessions:  f.sessions,
		Samples:   f.samples,
		Checkins:  f.checkins,
		Users:     f.users,
		Provider:  f.provider,
		Notifier:  f.notifier,
		Scheduler: NewScheduler(testLogger),
		Clock:     f.clock,
		Logger:    testLogger,
	})

	f.rec = &Record{UserID: user.ID, StartTime: monitorStart, Source: SourceSMS}
	require.NoError(t, f.sessions.Insert(context.Background(), f.rec))
	f.job = &job{m: f.monitor, sessionID: f.rec.ID, userID: user.ID}
	return f
}

func (f *monitorFixture) drink(at time.Time, sizeOz, abv float64) {
	f.checkins.Insert(context.Background(), &checkin.Checkin{
		UserID: f.user.ID, DrankAt: at, Name: "test beer", SizeOz: sizeOz, ABV: abv,
	})
}

func (f *monitorFixture) tickAt(at time.Time) {
	f.clock.Set(at)
	f.job.tick(context.Background())
}

func TestTickComputesEstimateAndRecordsSample(t *testing.T) {
	f := newMonitorFixture(t)

	// One standard beer: 12 oz at 5%, one hour of burn-off.
	f.drink(monitorStart.Add(10*time.Minute), 12, 0.05)
	f.tickAt(monitorStart.Add(time.Hour))

	samples := f.samples.all()
	require.Len(t, samples, 1)
	assert.Equal(t, "u1", samples[0].UserID)
	assert.Equal(t, 0.01, samples[0].BAC)
	assert.Equal(t, monitorStart.Add(time.Hour), samples[0].SampledAt)

	// First tick always fans out a status.
	calls := f.notifier.all()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].fanOut)
	assert.Contains(t, calls[0].message, "norm")

	// Nonzero estimate, session keeps running.
	assert.Nil(t, f.sessions.stopTimeOf(f.rec.ID))
}

func TestTickThrottlesStatusFanOut(t *testing.T) {
	f := newMonitorFixture(t)

	// Enough alcohol to stay above zero for the whole test.
	f.drink(monitorStart.Add(time.Minute), 12, 0.08)
	f.drink(monitorStart.Add(2*time.Minute), 12, 0.08)
	f.drink(monitorStart.Add(3*time.Minute), 12, 0.08)

	f.tickAt(monitorStart.Add(15 * time.Minute))
	require.Len(t, f.notifier.all(), 1)

	// Ten minutes later: inside the 30 minute window, no new fan-out.
	f.tickAt(monitorStart.Add(25 * time.Minute))
	assert.Len(t, f.notifier.all(), 1)

	// 35 minutes after the first fan-out: window elapsed.
	f.tickAt(monitorStart.Add(50 * time.Minute))
	assert.Len(t, f.notifier.all(), 2)
}

func TestTickFanOutFailureRetriesNextTick(t *testing.T) {
	f := newMonitorFixture(t)
	f.drink(monitorStart.Add(time.Minute), 12, 0.08)

	f.notifier.failAll = true
	f.tickAt(monitorStart.Add(5 * time.Minute))
	require.Empty(t, f.notifier.all())

	// The throttle only arms on success, so the very next tick retries.
	f.notifier.failAll = false
	f.tickAt(monitorStart.Add(6 * time.Minute))
	assert.Len(t, f.notifier.all(), 1)
}

func TestTickSoberGraceHoldsEarlyStop(t *testing.T) {
	f := newMonitorFixture(t)

	// No drinks logged yet: estimate 0 inside the grace window.
	f.tickAt(monitorStart.Add(9 * time.Minute))
	assert.Nil(t, f.sessions.stopTimeOf(f.rec.ID))

	samples := f.samples.all()
	require.Len(t, samples, 1)
	assert.Equal(t, 0.0, samples[0].BAC)

	// Past the grace window the zero estimate stops the session.
	f.tickAt(monitorStart.Add(11 * time.Minute))
	stop := f.sessions.stopTimeOf(f.rec.ID)
	require.NotNil(t, stop)
	assert.Equal(t, monitorStart.Add(11*time.Minute), *stop)

	// The stop is announced to the user only, never fanned out.
	calls := f.notifier.all()
	var stopCalls int
	for _, c := range calls {
		if !c.fanOut {
			stopCalls++
			assert.Equal(t, "u1", c.userID)
		}
	}
	assert.Equal(t, 1, stopCalls)
}

func TestTickHonorsScheduledStopTime(t *testing.T) {
	f := newMonitorFixture(t)

	scheduledStop := monitorStart.Add(30 * time.Minute)
	require.NoError(t, f.sessions.SetStopTime(context.Background(), f.rec.ID, scheduledStop))
	f.drink(monitorStart.Add(time.Minute), 12, 0.08)

	// Before the scheduled stop the session keeps running.
	f.tickAt(monitorStart.Add(10 * time.Minute))
	stop := f.sessions.stopTimeOf(f.rec.ID)
	require.NotNil(t, stop)
	assert.Equal(t, scheduledStop, *stop)

	// After it, the tick finalizes the stop without rewriting the time.
	f.tickAt(monitorStart.Add(31 * time.Minute))
	stop = f.sessions.stopTimeOf(f.rec.ID)
	require.NotNil(t, stop)
	assert.Equal(t, scheduledStop, *stop)

	var stopCalls int
	for _, c := range f.notifier.all() {
		if !c.fanOut {
			stopCalls++
		}
	}
	assert.Equal(t, 1, stopCalls)
}

func TestTickUserGoneForceStopsSilently(t *testing.T) {
	f := newMonitorFixture(t)
	f.users.remove("u1")

	f.tickAt(monitorStart.Add(5 * time.Minute))

	stop := f.sessions.stopTimeOf(f.rec.ID)
	require.NotNil(t, stop)
	assert.Empty(t, f.notifier.all())
	assert.Empty(t, f.samples.all())
}

func TestTickIngestsExternalCheckins(t *testing.T) {
	f := newMonitorFixture(t)
	untappd := "norm-untappd"
	f.user.UntappdUsername = &untappd

	f.provider.events = []checkin.Checkin{
		{DrankAt: monitorStart.Add(5 * time.Minute), Name: "external stout", SizeOz: 12, ABV: 0.08},
	}

	f.tickAt(monitorStart.Add(10 * time.Minute))

	// First fetch starts from the session start.
	sinces := f.provider.requestedSinces()
	require.Len(t, sinces, 1)
	assert.Equal(t, monitorStart, sinces[0])

	// The event was persisted under the session's user.
	stored, err := f.checkins.ListSince(context.Background(), "u1", monitorStart)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "u1", stored[0].UserID)

	// Watermark advanced to the tick time.
	mark := f.sessions.watermarkOf(f.rec.ID)
	require.NotNil(t, mark)
	assert.Equal(t, monitorStart.Add(10*time.Minute), *mark)

	// The estimate already includes the external drink.
	samples := f.samples.all()
	require.Len(t, samples, 1)
	assert.Greater(t, samples[0].BAC, 0.0)

	// The next fetch resumes from the watermark.
	f.provider.events = nil
	f.tickAt(monitorStart.Add(20 * time.Minute))
	sinces = f.provider.requestedSinces()
	require.Len(t, sinces, 2)
	assert.Equal(t, monitorStart.Add(10*time.Minute), sinces[1])
}

func TestTickFailedIngestKeepsWatermark(t *testing.T) {
	f := newMonitorFixture(t)
	untappd := "norm-untappd"
	f.user.UntappdUsername = &untappd
	f.checkins.failBatch = true

	f.provider.events = []checkin.Checkin{
		{DrankAt: monitorStart.Add(2 * time.Minute), Name: "external stout", SizeOz: 12, ABV: 0.08},
	}

	f.tickAt(monitorStart.Add(5 * time.Minute))

	// Persistence failed: the watermark stays put so the window is retried.
	assert.Nil(t, f.sessions.watermarkOf(f.rec.ID))

	// The fetched events still feed this tick's estimate.
	samples := f.samples.all()
	require.Len(t, samples, 1)
	assert.Greater(t, samples[0].BAC, 0.0)

	// Next tick re-requests from the session start.
	f.tickAt(monitorStart.Add(6 * time.Minute))
	sinces := f.provider.requestedSinces()
	require.Len(t, sinces, 2)
	assert.Equal(t, monitorStart, sinces[1])
}

func TestTickDeletedSessionDetaches(t *testing.T) {
	f := newMonitorFixture(t)
	orphan := &job{m: f.monitor, sessionID: "missing", userID: "u1"}

	orphan.tick(context.Background())

	assert.Empty(t, f.samples.all())
	assert.Empty(t, f.notifier.all())
}

func TestAttachRefusesSecondTimer(t *testing.T) {
	f := newMonitorFixture(t)

	// Start far in the future so the timer never ticks during the test.
	f.rec.StartTime = monitorStart.Add(time.Hour)
	require.NoError(t, f.monitor.Attach(context.Background(), f.rec))
	assert.Error(t, f.monitor.Attach(context.Background(), f.rec))

	f.monitor.scheduler.Stop(MonitorKey("u1"))
}
