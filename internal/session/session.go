// Package session implements the per-user drinking-session monitor: the
// persisted session record, the keyed timer scheduler, the tick handler,
// the start/stop lifecycle operations, and the boot-time recovery sweep.
package session

import (
	"context"
	"time"

	"github.com/barflyapp/barfly-data/internal/users"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Source is the channel a session or notification originated from.
type Source string

const (
	SourceSMS       Source = "sms"
	SourceMessenger Source = "messenger"
	SourceMobile    Source = "mobile"
)

// Record is the persisted description of one monitoring session.
type Record struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	StartTime time.Time  `json:"start_time"`
	StopTime  *time.Time `json:"stop_time,omitempty"`
	Source    Source     `json:"source"`

	// PeriodSeconds overrides the service-default tick cadence.
	PeriodSeconds *int `json:"period_seconds,omitempty"`

	// LastModified is the watermark up to which external checkins have
	// been ingested. Monotonically non-decreasing.
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// Running reports whether the session is logically running at now: no stop
// time, or a stop time still in the future.
func (r *Record) Running(now time.Time) bool {
	return r.StopTime == nil || r.StopTime.After(now)
}

// Period returns the session's tick cadence, falling back to def.
func (r *Record) Period(def time.Duration) time.Duration {
	if r.PeriodSeconds != nil && *r.PeriodSeconds > 0 {
		return time.Duration(*r.PeriodSeconds) * time.Second
	}
	return def
}

// Watermark returns the ingestion bound: last_modified when set, otherwise
// the session start.
func (r *Record) Watermark() time.Time {
	if r.LastModified != nil {
		return *r.LastModified
	}
	return r.StartTime
}

// StartOptions carries the caller-supplied fields for a new session.
type StartOptions struct {
	StartTime     *time.Time `json:"start_time,omitempty"`
	StopTime      *time.Time `json:"stop_time,omitempty"`
	Source        Source     `json:"source,omitempty"`
	PeriodSeconds *int       `json:"period_seconds,omitempty"`
}

// --------------------------------------------------------------------------
// Store interfaces
// --------------------------------------------------------------------------

// Store persists session records.
type Store interface {
	Insert(ctx context.Context, r *Record) error

	// GetByID returns apperr.ErrNotFound when the session does not exist.
	GetByID(ctx context.Context, id string) (*Record, error)

	// RunningByUser returns the user's running session, or
	// apperr.ErrNotFound when there is none.
	RunningByUser(ctx context.Context, userID string) (*Record, error)

	// LatestByUser returns the user's most recent session regardless of
	// state, or apperr.ErrNotFound.
	LatestByUser(ctx context.Context, userID string) (*Record, error)

	ListByUser(ctx context.Context, userID string) ([]Record, error)

	// ListRunning returns every session the store believes is running.
	ListRunning(ctx context.Context) ([]Record, error)

	SetStopTime(ctx context.Context, id string, t time.Time) error

	// AdvanceWatermark sets last_modified to t. The store never moves the
	// watermark backwards.
	AdvanceWatermark(ctx context.Context, id string, t time.Time) error
}

// Sample is one appended BAC estimate.
type Sample struct {
	UserID    string    `json:"user_id"`
	SampledAt time.Time `json:"sampled_at"`
	BAC       float64   `json:"bac"`
}

// LeaderboardRow is a user's most recent sample inside the leaderboard
// window.
type LeaderboardRow struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	SampledAt time.Time `json:"sampled_at"`
	BAC       float64   `json:"bac"`
}

// SampleStore persists the append-only BAC sample log.
type SampleStore interface {
	Insert(ctx context.Context, s *Sample) error

	// Latest returns apperr.ErrNotFound when the user has no samples.
	Latest(ctx context.Context, userID string) (*Sample, error)

	Leaderboard(ctx context.Context) ([]LeaderboardRow, error)
}

// --------------------------------------------------------------------------
// Notifier
// --------------------------------------------------------------------------

// Notifier is the fan-out surface the monitor and lifecycle controller use.
// Implemented by internal/notify.
type Notifier interface {
	// FanOut writes a notification for the user and one for each current
	// follower. Best-effort per recipient.
	FanOut(ctx context.Context, user *users.User, message string, source Source, at time.Time) error

	// Notify writes a notification for the user only.
	Notify(ctx context.Context, user *users.User, message string, source Source, at time.Time) error
}
