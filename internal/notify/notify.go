// Package notify persists user notifications, fans them out to followers,
// and delivers unpushed records over SMS/Messenger on an independent sweep.
//
// Creation is at-least-once; delivery is at-most-one-attempt: the sweep
// flips pushed exactly once per record regardless of send outcome and never
// retries a record.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/barflyapp/barfly-data/internal/session"
	"github.com/barflyapp/barfly-data/internal/users"
)

// Notification is one persisted message for one recipient.
type Notification struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	SourceUserID *string   `json:"source_user_id,omitempty"`
	Source       *string   `json:"source,omitempty"` // preferred channel hint
	Message      string    `json:"message"`
	Read         bool      `json:"read"`
	Pushed       bool      `json:"pushed"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists notifications. The delivery sweep owns the pushed
// transition; the API layer owns read.
type Store interface {
	Insert(ctx context.Context, n *Notification) error
	ListUnpushed(ctx context.Context) ([]Notification, error)
	MarkPushed(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// --------------------------------------------------------------------------
// Fan-out
// --------------------------------------------------------------------------

// Service implements session.Notifier: it writes notification records; the
// delivery sweep pushes them out later.
type Service struct {
	store  Store
	users  users.Store
	logger *slog.Logger
}

func NewService(store Store, userStore users.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, users: userStore, logger: logger}
}

// Notify writes a notification for the user only.
func (s *Service) Notify(ctx context.Context, user *users.User, message string, source session.Source, at time.Time) error {
	n := &Notification{
		UserID:    user.ID,
		Message:   message,
		CreatedAt: at,
	}
	if source != "" {
		src := string(source)
		n.Source = &src
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// FanOut writes one notification for the user and one for each follower the
// user has at call time. Follower writes are independent: one failure is
// logged and the rest proceed. The user's own write failing fails the call.
func (s *Service) FanOut(ctx context.Context, user *users.User, message string, source session.Source, at time.Time) error {
	if err := s.Notify(ctx, user, message, source, at); err != nil {
		return err
	}

	followers, err := s.users.Followers(ctx, user.ID)
	if err != nil {
		s.logger.Warn("fan-out: get followers failed", "user_id", user.ID, "error", err)
		return nil
	}

	var src *string
	if source != "" {
		v := string(source)
		src = &v
	}
	for _, f := range followers {
		n := &Notification{
			UserID:       f.ID,
			SourceUserID: &user.ID,
			Source:       src,
			Message:      message,
			CreatedAt:    at,
		}
		if err := s.store.Insert(ctx, n); err != nil {
			s.logger.Warn("fan-out: follower write failed",
				"user_id", user.ID, "follower_id", f.ID, "error", err)
		}
	}
	return nil
}
