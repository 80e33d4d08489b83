package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/barflyapp/barfly-data/internal/apperr"
	"github.com/barflyapp/barfly-data/internal/bac"
	"github.com/barflyapp/barfly-data/internal/checkin"
	"github.com/barflyapp/barfly-data/internal/clock"
	"github.com/barflyapp/barfly-data/internal/i18n"
	"github.com/barflyapp/barfly-data/internal/users"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// DefaultTickPeriod is the monitor cadence when the session carries no
	// override.
	DefaultTickPeriod = 60 * time.Second

	// DefaultNotifyInterval is the minimum gap between status fan-outs for
	// one session.
	DefaultNotifyInterval = 30 * time.Minute

	// DefaultSoberGrace is the window after session start during which a
	// zero estimate never stops the session — the user may simply not have
	// logged a drink yet.
	DefaultSoberGrace = 10 * time.Minute
)

// --------------------------------------------------------------------------
// Monitor
// --------------------------------------------------------------------------

// MonitorConfig wires the monitor's collaborators. Zero durations fall back
// to the package defaults; a nil Clock falls back to the system clock.
type MonitorConfig struct {
	Sessions  Store
	Samples   SampleStore
	Checkins  checkin.Store
	Users     users.Store
	Provider  checkin.Provider
	Notifier  Notifier
	Scheduler *Scheduler
	Clock     clock.Clock
	Logger    *slog.Logger

	TickPeriod     time.Duration
	NotifyInterval time.Duration
	SoberGrace     time.Duration
}

// Monitor runs the per-tick session logic and attaches sessions to the
// scheduler. One Monitor serves all sessions; per-session state (the notify
// throttle) lives on the job created per attachment and is lost on restart.
type Monitor struct {
	sessions  Store
	samples   SampleStore
	checkins  checkin.Store
	users     users.Store
	provider  checkin.Provider
	notifier  Notifier
	scheduler *Scheduler
	clock     clock.Clock
	logger    *slog.Logger

	tickPeriod     time.Duration
	notifyInterval time.Duration
	soberGrace     time.Duration
}

func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Provider == nil {
		cfg.Provider = checkin.NoneProvider{}
	}
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = DefaultTickPeriod
	}
	if cfg.NotifyInterval <= 0 {
		cfg.NotifyInterval = DefaultNotifyInterval
	}
	if cfg.SoberGrace <= 0 {
		cfg.SoberGrace = DefaultSoberGrace
	}
	return &Monitor{
		sessions:       cfg.Sessions,
		samples:        cfg.Samples,
		checkins:       cfg.Checkins,
		users:          cfg.Users,
		provider:       cfg.Provider,
		notifier:       cfg.Notifier,
		scheduler:      cfg.Scheduler,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		tickPeriod:     cfg.TickPeriod,
		notifyInterval: cfg.NotifyInterval,
		soberGrace:     cfg.SoberGrace,
	}
}

// Attach registers a recurring timer for the session: first tick after
// max(0, startTime − now), then every session period.
func (m *Monitor) Attach(ctx context.Context, rec *Record) error {
	now := m.clock.Now()
	delay := rec.StartTime.Sub(now)
	if delay < 0 {
		delay = 0
	}

	j := &job{m: m, sessionID: rec.ID, userID: rec.UserID}
	_, err := m.scheduler.Start(ctx, MonitorKey(rec.UserID), delay, rec.Period(m.tickPeriod), j.tick)
	return err
}

// --------------------------------------------------------------------------
// Per-session job
// --------------------------------------------------------------------------

// job is the state attached to one running timer. lastNotified is the
// in-memory notify throttle; a process restart resets it, which is accepted
// behavior, not a bug.
type job struct {
	m            *Monitor
	sessionID    string
	userID       string
	lastNotified time.Time
}

// tick is one scheduled execution. Every failure is logged and swallowed —
// a bad tick leaves a stale-but-consistent estimate and the timer fires
// again next period.
func (j *job) tick(ctx context.Context) {
	m := j.m
	now := m.clock.Now()
	log := m.logger.With("session_id", j.sessionID, "user_id", j.userID)

	// Re-read the record so stop requests made since the last tick are
	// visible. A deleted session leaves nothing to monitor.
	rec, err := m.sessions.GetByID(ctx, j.sessionID)
	if errors.Is(err, apperr.ErrNotFound) {
		m.scheduler.Stop(MonitorKey(j.userID))
		return
	}
	if err != nil {
		log.Warn("tick: load session failed", "error", err)
		return
	}

	// 1. Existence check: a deleted user terminates the session for good.
	user, err := m.users.GetByID(ctx, j.userID)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Info("tick: user gone, force-stopping session")
		j.forceStop(ctx, rec, now, nil)
		return
	}
	if err != nil {
		log.Warn("tick: load user failed", "error", err)
		return
	}

	// 2. Local events for the session window.
	events, err := m.checkins.ListWindow(ctx, j.userID, rec.StartTime, now)
	if err != nil {
		log.Warn("tick: list checkins failed", "error", err)
		return
	}

	// 3. External events since the watermark. The watermark only advances
	// when persistence succeeds, so a failed batch is retried next tick.
	events = append(events, j.ingestExternal(ctx, rec, user, now, log)...)

	// 4. Compute the estimate over [startTime, now].
	grams, count := 0.0, 0
	for _, ev := range events {
		if ev.DrankAt.Before(rec.StartTime) || ev.DrankAt.After(now) {
			continue
		}
		grams += bac.GramsOfAlcohol(ev.SizeOz, ev.ABV)
		count++
	}
	hours, err := bac.DurationHours(rec.StartTime, now)
	if err != nil {
		log.Warn("tick: session starts in the future", "start_time", rec.StartTime)
		return
	}
	estimate := bac.Round3(bac.Estimate(
		grams, bac.PoundsToGrams(user.WeightLbs), bac.GenderConstant(user.Gender), hours))

	// 5. Append the sample.
	sample := &Sample{UserID: j.userID, SampledAt: now, BAC: estimate}
	if err := m.samples.Insert(ctx, sample); err != nil {
		log.Warn("tick: record sample failed", "error", err)
	}

	// 6. Throttled status fan-out.
	if j.lastNotified.IsZero() || now.Sub(j.lastNotified) >= m.notifyInterval {
		msg := i18n.Label(i18n.KeySessionStatus,
			user.Username, estimate, i18n.Label(i18n.LevelKey(estimate)), count)
		if err := m.notifier.FanOut(ctx, user, msg, rec.Source, now); err != nil {
			log.Warn("tick: fan-out failed", "error", err)
		} else {
			j.lastNotified = now
		}
	}

	// 7. Stop evaluation.
	sober := estimate == 0 && now.Sub(rec.StartTime) > m.soberGrace
	explicit := rec.StopTime != nil && !now.Before(*rec.StopTime)
	if sober || explicit {
		log.Info("tick: stopping session", "sober", sober, "explicit", explicit, "bac", estimate)
		j.forceStop(ctx, rec, now, user)
	}
}

// ingestExternal fetches events from the provider and persists them. It
// returns the fetched events (whether or not the watermark advanced) so the
// current tick can include them in the estimate.
func (j *job) ingestExternal(ctx context.Context, rec *Record, user *users.User, now time.Time, log *slog.Logger) []checkin.Checkin {
	m := j.m
	if !user.HasUntappdLink() {
		return nil
	}

	link := &checkin.Link{Username: *user.UntappdUsername}
	if user.UntappdToken != nil {
		link.AccessToken = *user.UntappdToken
	}

	fetched := m.provider.Fetch(ctx, link, rec.Watermark())
	for i := range fetched {
		fetched[i].UserID = j.userID
	}

	if err := m.checkins.InsertBatch(ctx, fetched); err != nil {
		// Watermark stays put; the same window is re-requested next tick.
		log.Warn("tick: external ingest failed", "events", len(fetched), "error", err)
		return fetched
	}
	if err := m.sessions.AdvanceWatermark(ctx, rec.ID, now); err != nil {
		log.Warn("tick: advance watermark failed", "error", err)
	}
	return fetched
}

// forceStop marks the record stopped if it still looks running, detaches
// the timer, and tells the user (never the followers). user may be nil when
// the account no longer exists.
func (j *job) forceStop(ctx context.Context, rec *Record, now time.Time, user *users.User) {
	m := j.m

	if rec.Running(now) {
		if err := m.sessions.SetStopTime(ctx, rec.ID, now); err != nil {
			m.logger.Warn("force-stop: persist stop time failed",
				"session_id", rec.ID, "error", err)
		}
	}

	m.scheduler.Stop(MonitorKey(j.userID))

	if user != nil {
		msg := i18n.Label(i18n.KeySessionStopped, user.Username)
		if err := m.notifier.Notify(ctx, user, msg, rec.Source, now); err != nil {
			m.logger.Warn("force-stop: notify failed", "session_id", rec.ID, "error", err)
		}
	}
}
