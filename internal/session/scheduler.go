package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// --------------------------------------------------------------------------
// Keyed timer registry
// --------------------------------------------------------------------------

// Key identifies one recurring timer: at most one live timer exists per key.
type Key struct {
	Kind   string
	UserID string
}

// KindMonitor is the key kind for session monitor timers.
const KindMonitor = "monitor"

// MonitorKey returns the timer key for a user's session monitor.
func MonitorKey(userID string) Key {
	return Key{Kind: KindMonitor, UserID: userID}
}

// TickFunc is one scheduled execution. Panics are recovered by the timer
// loop so a bad tick never kills the timer.
type TickFunc func(ctx context.Context)

// Handle is a running or stopped timer.
type Handle struct {
	key    Key
	cancel context.CancelFunc
	done   chan struct{}
}

// IsShutdown reports whether the timer loop has exited.
func (h *Handle) IsShutdown() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Stop cancels the timer. A tick already in flight completes; the timer
// never fires again afterwards. Safe to call more than once.
func (h *Handle) Stop() {
	h.cancel()
}

// Scheduler owns the map from key to timer handle. Each timer runs its
// ticks on its own goroutine, so ticks for one key are strictly serialized
// while timers for different keys run concurrently.
type Scheduler struct {
	mu     sync.Mutex
	timers map[Key]*Handle
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		timers: make(map[Key]*Handle),
		logger: logger,
	}
}

// Get returns the handle for key, live or shut down, or nil.
func (s *Scheduler) Get(key Key) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[key]
}

// Live reports whether a timer exists for key and has not shut down.
func (s *Scheduler) Live(key Key) bool {
	h := s.Get(key)
	return h != nil && !h.IsShutdown()
}

// Start attaches a recurring timer for key: the first tick fires after
// initialDelay, then every period at a fixed rate. It refuses to attach
// while a live timer exists for the key.
//
// The timer outlives the caller: its loop context carries ctx's values but
// not its cancellation, so a timer attached from an HTTP request keeps
// ticking after the handler returns. Only Handle.Stop ends it.
func (s *Scheduler) Start(ctx context.Context, key Key, initialDelay, period time.Duration, tick TickFunc) (*Handle, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %s", period)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[key]; ok && !existing.IsShutdown() {
		return nil, fmt.Errorf("timer already live for %s/%s", key.Kind, key.UserID)
	}

	timerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{
		key:    key,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.timers[key] = h

	go s.run(timerCtx, h, initialDelay, period, tick)
	return h, nil
}

// Stop cancels the timer for key. Stopping an absent or already-stopped
// timer is a no-op.
func (s *Scheduler) Stop(key Key) {
	if h := s.Get(key); h != nil {
		h.Stop()
	}
}

// run is the timer loop: one goroutine per key.
func (s *Scheduler) run(ctx context.Context, h *Handle, initialDelay, period time.Duration, tick TickFunc) {
	defer close(h.done)

	if initialDelay > 0 {
		delay := time.NewTimer(initialDelay)
		select {
		case <-delay.C:
		case <-ctx.Done():
			delay.Stop()
			return
		}
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		s.safeTick(ctx, h.key, tick)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// safeTick runs one tick, swallowing panics so the timer survives.
func (s *Scheduler) safeTick(ctx context.Context, key Key, tick TickFunc) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panicked", "kind", key.Kind, "user_id", key.UserID, "panic", r)
		}
	}()
	tick(ctx)
}
