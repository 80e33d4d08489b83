package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/barflyapp/barfly-data/internal/apperr"
	"github.com/barflyapp/barfly-data/internal/clock"
	"github.com/barflyapp/barfly-data/internal/i18n"
	"github.com/barflyapp/barfly-data/internal/users"
)

// Controller exposes the start/stop operations the HTTP layer and text
// commands call. Failures come back as apperr sentinels wrapped with
// context.
type Controller struct {
	sessions  Store
	monitor   *Monitor
	scheduler *Scheduler
	notifier  Notifier
	clock     clock.Clock
	logger    *slog.Logger
}

func NewController(sessions Store, monitor *Monitor, scheduler *Scheduler, notifier Notifier, clk clock.Clock, logger *slog.Logger) *Controller {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sessions:  sessions,
		monitor:   monitor,
		scheduler: scheduler,
		notifier:  notifier,
		clock:     clk,
		logger:    logger,
	}
}

// Start creates a session record for the user and attaches its timer.
func (c *Controller) Start(ctx context.Context, user *users.User, opts StartOptions) (*Record, error) {
	if opts.StopTime != nil {
		return nil, fmt.Errorf("%w: session cannot start already finished", apperr.ErrInvalidRequest)
	}

	// A live timer means a session is already being monitored.
	if c.scheduler.Live(MonitorKey(user.ID)) {
		return nil, fmt.Errorf("%w: user %s already has a running session", apperr.ErrConflict, user.ID)
	}

	now := c.clock.Now()
	rec := &Record{
		UserID:        user.ID,
		StartTime:     now,
		Source:        opts.Source,
		PeriodSeconds: opts.PeriodSeconds,
	}
	if opts.StartTime != nil {
		rec.StartTime = *opts.StartTime
	}
	// The watermark starts at the session start: external ingestion never
	// reaches back before the declared beginning.
	watermark := rec.StartTime
	rec.LastModified = &watermark

	if err := c.sessions.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: persist session: %v", apperr.ErrStorage, err)
	}

	if err := c.monitor.Attach(ctx, rec); err != nil {
		// Lost the race with a concurrent start for the same user.
		return nil, fmt.Errorf("%w: %v", apperr.ErrConflict, err)
	}

	c.logger.Info("session started",
		"session_id", rec.ID, "user_id", user.ID, "source", rec.Source)
	return rec, nil
}

// Stop detaches the user's timer and marks their latest session stopped.
// Detaching is idempotent; stopping an already-stopped session is a
// conflict and changes nothing.
func (c *Controller) Stop(ctx context.Context, user *users.User) (*Record, error) {
	// Detach first. The record check below is independent of timer state so
	// the two cannot drift apart silently.
	c.scheduler.Stop(MonitorKey(user.ID))

	rec, err := c.sessions.LatestByUser(ctx, user.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s has no sessions", apperr.ErrNotFound, user.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load session: %v", apperr.ErrStorage, err)
	}

	now := c.clock.Now()
	if !rec.Running(now) {
		return nil, fmt.Errorf("%w: session %s already stopped", apperr.ErrConflict, rec.ID)
	}

	if err := c.sessions.SetStopTime(ctx, rec.ID, now); err != nil {
		// The timer is already gone; the record self-heals via the
		// recovery sweep or a retried stop.
		return nil, fmt.Errorf("%w: persist stop time: %v", apperr.ErrStorage, err)
	}
	rec.StopTime = &now

	msg := i18n.Label(i18n.KeySessionStopped, user.Username)
	if err := c.notifier.Notify(ctx, user, msg, rec.Source, now); err != nil {
		c.logger.Warn("stop: notify failed", "session_id", rec.ID, "error", err)
	}

	c.logger.Info("session stopped", "session_id", rec.ID, "user_id", user.ID)
	return rec, nil
}
