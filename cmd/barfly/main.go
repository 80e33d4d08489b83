// Command barfly is the Barfly operations CLI.
//
// Usage:
//
//	barfly sessions list
//	barfly sessions stop --user <user-id>
//	barfly deliver once
//	barfly recover
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/barflyapp/barfly-data/internal/checkin"
	"github.com/barflyapp/barfly-data/internal/config"
	"github.com/barflyapp/barfly-data/internal/db"
	"github.com/barflyapp/barfly-data/internal/notify"
	"github.com/barflyapp/barfly-data/internal/session"
	"github.com/barflyapp/barfly-data/internal/users"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "barfly",
		Short: "Barfly operations CLI",
	}

	root.AddCommand(sessionsCmd())
	root.AddCommand(deliverCmd())
	root.AddCommand(recoverCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// sessions command
// --------------------------------------------------------------------------

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage drinking sessions",
	}
	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsStopCmd())
	return cmd
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List running sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := session.NewPostgresStore(pool.Pool)
				running, err := store.ListRunning(ctx)
				if err != nil {
					return fmt.Errorf("list running sessions: %w", err)
				}
				if len(running) == 0 {
					fmt.Println("no running sessions")
					return nil
				}
				for _, rec := range running {
					fmt.Printf("%s  user=%s  source=%s  started=%s  watermark=%s\n",
						rec.ID, rec.UserID, rec.Source,
						rec.StartTime.Format(time.RFC3339),
						rec.Watermark().Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}

func sessionsStopCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a user's running session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				userStore := users.NewPostgresStore(pool.Pool)
				notificationStore := notify.NewPostgresStore(pool.Pool)
				notifier := notify.NewService(notificationStore, userStore, logger)
				sessionStore := session.NewPostgresStore(pool.Pool)
				scheduler := session.NewScheduler(logger)
				controller := session.NewController(sessionStore, nil, scheduler, notifier, nil, logger)

				user, err := userStore.GetByID(ctx, userID)
				if err != nil {
					return fmt.Errorf("load user: %w", err)
				}

				// Persists the stop; the API process's monitor sees it on its
				// next tick and detaches the timer.
				rec, err := controller.Stop(ctx, user)
				if err != nil {
					return err
				}
				logger.Info("Session stopped", "session_id", rec.ID, "user_id", userID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User whose running session to stop")
	return cmd
}

// --------------------------------------------------------------------------
// deliver command
// --------------------------------------------------------------------------

func deliverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Notification delivery",
	}
	cmd.AddCommand(deliverOnceCmd())
	return cmd
}

func deliverOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single delivery sweep over unpushed notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				userStore := users.NewPostgresStore(pool.Pool)
				notificationStore := notify.NewPostgresStore(pool.Pool)
				sms := notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
				messenger := notify.NewMessengerSender(cfg.MessengerPageToken, logger)
				deliverer := notify.NewDeliverer(notificationStore, userStore, sms, messenger, logger)

				start := time.Now()
				delivered, skipped := deliverer.DeliverOnce(ctx)
				logger.Info("Delivery sweep finished",
					"delivered", delivered, "skipped", skipped,
					"duration", time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// recover command
// --------------------------------------------------------------------------

func recoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Re-attach monitors for running sessions and keep them ticking until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				userStore := users.NewPostgresStore(pool.Pool)
				sessionStore := session.NewPostgresStore(pool.Pool)
				sampleStore := session.NewPostgresSampleStore(pool.Pool)
				checkinStore := checkin.NewPostgresStore(pool.Pool)
				notificationStore := notify.NewPostgresStore(pool.Pool)
				notifier := notify.NewService(notificationStore, userStore, logger)

				scheduler := session.NewScheduler(logger)
				monitor := session.NewMonitor(session.MonitorConfig{
					Sessions:       sessionStore,
					Samples:        sampleStore,
					Checkins:       checkinStore,
					Users:          userStore,
					Notifier:       notifier,
					Scheduler:      scheduler,
					Logger:         logger,
					TickPeriod:     cfg.SessionTickPeriod,
					NotifyInterval: cfg.NotifyInterval,
					SoberGrace:     cfg.SoberGrace,
				})

				result := session.Recover(ctx, sessionStore, monitor, scheduler, logger)
				logger.Info("Recovery sweep finished", "summary", result.Summary())
				if result.Attached == 0 {
					return nil
				}

				// Monitors live in this process; hold it open so they tick.
				logger.Info("Monitoring recovered sessions, Ctrl-C to exit")
				<-ctx.Done()
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// run handles config loading, DB connection, and context cancellation.
func run(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}
