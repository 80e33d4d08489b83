package checkin

import (
	"context"
	"fmt"
	"time"

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

func (s *PostgresStore) Insert(ctx context.Context, c *Checkin) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, "insert_checkin",
		c.ID, c.UserID, c.DrankAt, c.Name, c.Producer, c.ABV, c.SizeOz, c.Rating, c.Style)
	if err != nil {
		return fmt.Errorf("insert checkin: %w", err)
	}
	return nil
}

// InsertBatch writes all events inside one transaction so a failure leaves
// no partial window behind.
func (s *PostgresStore) InsertBatch(ctx context.Context, events []Checkin) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range events {
		c := &events[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if _, err := tx.Exec(ctx, "insert_checkin",
			c.ID, c.UserID, c.DrankAt, c.Name, c.Producer, c.ABV, c.SizeOz, c.Rating, c.Style); err != nil {
			return fmt.Errorf("batch insert checkin: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListWindow(ctx context.Context, userID string, from, to time.Time) ([]Checkin, error) {
	return s.list(ctx, "checkins_by_user_window", userID, from, to)
}

func (s *PostgresStore) ListSince(ctx context.Context, userID string, since time.Time) ([]Checkin, error) {
	return s.list(ctx, "checkins_by_user_since", userID, since)
}

func (s *PostgresStore) list(ctx context.Context, stmt string, args ...any) ([]Checkin, error) {
	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query checkins: %w", err)
	}
	defer rows.Close()

	var events []Checkin
	for rows.Next() {
		var c Checkin
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.DrankAt, &c.Name, &c.Producer,
			&c.ABV, &c.SizeOz, &c.Rating, &c.Style,
		); err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		events = append(events, c)
	}
	return events, rows.Err()
}
