package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barflyapp/barfly-data/internal/apperr"
)

// PostgresStore implements Store over the shared pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, r *Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, "insert_session",
		r.ID, r.UserID, r.StartTime, r.StopTime, r.Source, r.PeriodSeconds, r.LastModified)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Record, error) {
	return s.getOne(ctx, "session_by_id", id)
}

func (s *PostgresStore) RunningByUser(ctx context.Context, userID string) (*Record, error) {
	return s.getOne(ctx, "running_session_by_user", userID)
}

func (s *PostgresStore) LatestByUser(ctx context.Context, userID string) (*Record, error) {
	return s.getOne(ctx, "latest_session_by_user", userID)
}

func (s *PostgresStore) getOne(ctx context.Context, stmt string, arg any) (*Record, error) {
	var r Record
	err := s.pool.QueryRow(ctx, stmt, arg).Scan(
		&r.ID, &r.UserID, &r.StartTime, &r.StopTime, &r.Source, &r.PeriodSeconds, &r.LastModified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	return s.list(ctx, "sessions_by_user", userID)
}

func (s *PostgresStore) ListRunning(ctx context.Context) ([]Record, error) {
	return s.list(ctx, "running_sessions")
}

func (s *PostgresStore) list(ctx context.Context, stmt string, args ...any) ([]Record, error) {
	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.StartTime, &r.StopTime, &r.Source, &r.PeriodSeconds, &r.LastModified,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) SetStopTime(ctx context.Context, id string, t time.Time) error {
	if _, err := s.pool.Exec(ctx, "update_session_stop", id, t); err != nil {
		return fmt.Errorf("set stop time: %w", err)
	}
	return nil
}

func (s *PostgresStore) AdvanceWatermark(ctx context.Context, id string, t time.Time) error {
	// The statement's WHERE clause refuses to move the watermark backwards.
	if _, err := s.pool.Exec(ctx, "update_session_watermark", id, t); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// BAC samples
// --------------------------------------------------------------------------

// PostgresSampleStore implements SampleStore over the shared pgx pool.
type PostgresSampleStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSampleStore(pool *pgxpool.Pool) *PostgresSampleStore {
	return &PostgresSampleStore{pool: pool}
}

func (s *PostgresSampleStore) Insert(ctx context.Context, sample *Sample) error {
	_, err := s.pool.Exec(ctx, "insert_bac_sample", sample.UserID, sample.SampledAt, sample.BAC)
	if err != nil {
		return fmt.Errorf("insert bac sample: %w", err)
	}
	return nil
}

func (s *PostgresSampleStore) Latest(ctx context.Context, userID string) (*Sample, error) {
	var sample Sample
	err := s.pool.QueryRow(ctx, "latest_bac_sample", userID).Scan(
		&sample.UserID, &sample.SampledAt, &sample.BAC)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest bac sample: %w", err)
	}
	return &sample, nil
}

func (s *PostgresSampleStore) Leaderboard(ctx context.Context) ([]LeaderboardRow, error) {
	rows, err := s.pool.Query(ctx, "bac_leaderboard")
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var board []LeaderboardRow
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.UserID, &row.Username, &row.SampledAt, &row.BAC); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		board = append(board, row)
	}
	return board, rows.Err()
}
