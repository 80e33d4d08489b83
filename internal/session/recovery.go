package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RecoveryResult tracks the outcome of one recovery sweep.
type RecoveryResult struct {
	Found    int
	Attached int
	Skipped  int
	Errors   []string
	Duration time.Duration
}

// Summary returns a human-readable summary.
func (r *RecoveryResult) Summary() string {
	return fmt.Sprintf("found=%d attached=%d skipped=%d errors=%d dur=%s",
		r.Found, r.Attached, r.Skipped, len(r.Errors), r.Duration.Round(time.Millisecond))
}

// Recover re-attaches timers to every session the store believes is still
// running. Run once at process startup, before the HTTP layer accepts
// traffic. Sessions whose user already has a live timer are skipped.
func Recover(ctx context.Context, sessions Store, monitor *Monitor, scheduler *Scheduler, logger *slog.Logger) RecoveryResult {
	start := time.Now()
	var result RecoveryResult

	running, err := sessions.ListRunning(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Duration = time.Since(start)
		logger.Error("recovery sweep: list running sessions failed", "error", err)
		return result
	}
	result.Found = len(running)

	for i := range running {
		rec := &running[i]
		if scheduler.Live(MonitorKey(rec.UserID)) {
			result.Skipped++
			continue
		}
		if err := monitor.Attach(ctx, rec); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("session %s: %s", rec.ID, err))
			continue
		}
		result.Attached++
	}

	result.Duration = time.Since(start)
	logger.Info("recovery sweep complete", "summary", result.Summary())
	return result
}
