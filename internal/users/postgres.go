package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barflyapp/barfly-data/internal/apperr"
)

// PostgresStore implements Store over the shared pgx pool. All statements
// are prepared in internal/db.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getOne(ctx, "user_by_id", id)
}

func (s *PostgresStore) GetByPhone(ctx context.Context, phone string) (*User, error) {
	return s.getOne(ctx, "user_by_phone", phone)
}

func (s *PostgresStore) GetByMessenger(ctx context.Context, messengerID string) (*User, error) {
	return s.getOne(ctx, "user_by_messenger", messengerID)
}

func (s *PostgresStore) getOne(ctx context.Context, stmt string, arg any) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, stmt, arg).Scan(
		&u.ID, &u.Username, &u.PhoneNumber, &u.MessengerID,
		&u.WeightLbs, &u.Gender, &u.UntappdUsername, &u.UntappdToken,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) Followers(ctx context.Context, userID string) ([]User, error) {
	rows, err := s.pool.Query(ctx, "user_followers", userID)
	if err != nil {
		return nil, fmt.Errorf("get followers: %w", err)
	}
	defer rows.Close()

	var followers []User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.ID, &u.Username, &u.PhoneNumber, &u.MessengerID,
			&u.WeightLbs, &u.Gender, &u.UntappdUsername, &u.UntappdToken,
		); err != nil {
			return nil, fmt.Errorf("scan follower: %w", err)
		}
		followers = append(followers, u)
	}
	return followers, rows.Err()
}
