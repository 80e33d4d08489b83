package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over the shared pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, "insert_notification",
		n.ID, n.UserID, n.SourceUserID, n.Source, n.Message, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUnpushed(ctx context.Context) ([]Notification, error) {
	return s.list(ctx, "unpushed_notifications")
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	stmt := "notifications_by_user"
	if unreadOnly {
		stmt = "unread_notifications"
	}
	return s.list(ctx, stmt, userID)
}

func (s *PostgresStore) list(ctx context.Context, stmt string, args ...any) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.SourceUserID, &n.Source,
			&n.Message, &n.Read, &n.Pushed, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *PostgresStore) MarkPushed(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "mark_notification_pushed", id); err != nil {
		return fmt.Errorf("mark pushed: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "mark_notification_read", id); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
