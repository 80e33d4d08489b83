// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barflyapp/barfly-data/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the API and session
// monitoring layers use. Prepared statements eliminate parse overhead on
// every request and every monitor tick.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Users
		"user_by_id":        "SELECT id, username, phone_number, messenger_id, weight_lbs, gender, untappd_username, untappd_token FROM users WHERE id = $1",
		"user_by_phone":     "SELECT id, username, phone_number, messenger_id, weight_lbs, gender, untappd_username, untappd_token FROM users WHERE phone_number = $1",
		"user_by_messenger": "SELECT id, username, phone_number, messenger_id, weight_lbs, gender, untappd_username, untappd_token FROM users WHERE messenger_id = $1",
		"user_followers":    "SELECT u.id, u.username, u.phone_number, u.messenger_id, u.weight_lbs, u.gender, u.untappd_username, u.untappd_token FROM user_follows uf JOIN users u ON u.id = uf.follower_id WHERE uf.user_id = $1",

		// Sessions
		"insert_session":           "INSERT INTO sessions (id, user_id, start_time, stop_time, source, period_seconds, last_modified) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		"session_by_id":            "SELECT id, user_id, start_time, stop_time, source, period_seconds, last_modified FROM sessions WHERE id = $1",
		"running_session_by_user":  "SELECT id, user_id, start_time, stop_time, source, period_seconds, last_modified FROM sessions WHERE user_id = $1 AND (stop_time IS NULL OR stop_time > NOW()) ORDER BY start_time DESC LIMIT 1",
		"sessions_by_user":         "SELECT id, user_id, start_time, stop_time, source, period_seconds, last_modified FROM sessions WHERE user_id = $1 ORDER BY start_time DESC",
		"latest_session_by_user":   "SELECT id, user_id, start_time, stop_time, source, period_seconds, last_modified FROM sessions WHERE user_id = $1 ORDER BY start_time DESC LIMIT 1",
		"running_sessions":         "SELECT id, user_id, start_time, stop_time, source, period_seconds, last_modified FROM sessions WHERE stop_time IS NULL OR stop_time > NOW()",
		"update_session_stop":      "UPDATE sessions SET stop_time = $2 WHERE id = $1",
		"update_session_watermark": "UPDATE sessions SET last_modified = $2 WHERE id = $1 AND (last_modified IS NULL OR last_modified <= $2)",

		// Checkins
		"insert_checkin":          "INSERT INTO checkins (id, user_id, drank_at, name, producer, abv, size_oz, rating, style) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		"checkins_by_user_window": "SELECT id, user_id, drank_at, name, producer, abv, size_oz, rating, style FROM checkins WHERE user_id = $1 AND drank_at >= $2 AND drank_at <= $3 ORDER BY drank_at",
		"checkins_by_user_since":  "SELECT id, user_id, drank_at, name, producer, abv, size_oz, rating, style FROM checkins WHERE user_id = $1 AND drank_at >= $2 ORDER BY drank_at DESC",

		// BAC samples
		"insert_bac_sample": "INSERT INTO bac_samples (user_id, sampled_at, bac) VALUES ($1, $2, $3)",
		"latest_bac_sample": "SELECT user_id, sampled_at, bac FROM bac_samples WHERE user_id = $1 ORDER BY sampled_at DESC LIMIT 1",
		"bac_leaderboard":   "SELECT DISTINCT ON (b.user_id) b.user_id, u.username, b.sampled_at, b.bac FROM bac_samples b JOIN users u ON u.id = b.user_id WHERE b.sampled_at > NOW() - INTERVAL '24 hours' ORDER BY b.user_id, b.sampled_at DESC",

		// Notifications
		"insert_notification":      "INSERT INTO notifications (id, user_id, source_user_id, source, message, read, pushed, created_at) VALUES ($1, $2, $3, $4, $5, false, false, $6)",
		"unpushed_notifications":   "SELECT id, user_id, source_user_id, source, message, read, pushed, created_at FROM notifications WHERE pushed = false ORDER BY created_at",
		"notifications_by_user":    "SELECT id, user_id, source_user_id, source, message, read, pushed, created_at FROM notifications WHERE user_id = $1 ORDER BY created_at DESC",
		"unread_notifications":     "SELECT id, user_id, source_user_id, source, message, read, pushed, created_at FROM notifications WHERE user_id = $1 AND read = false ORDER BY created_at DESC",
		"mark_notification_pushed": "UPDATE notifications SET pushed = true WHERE id = $1",
		"mark_notification_read":   "UPDATE notifications SET read = true WHERE id = $1",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
