// Command api is the Barfly Data API server.
//
// Usage:
//
//	barfly-api
//	API_PORT=8080 barfly-api

// @title Barfly Data API
// @version 1.0.0
// @description Social drinking tracker API: session monitoring, BAC estimates, drink checkins, and notifications.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name Barfly
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/barflyapp/barfly-data/internal/api"
	"github.com/barflyapp/barfly-data/internal/api/handler"
	"github.com/barflyapp/barfly-data/internal/cache"
	"github.com/barflyapp/barfly-data/internal/checkin"
	"github.com/barflyapp/barfly-data/internal/checkin/untappd"
	"github.com/barflyapp/barfly-data/internal/commands"
	"github.com/barflyapp/barfly-data/internal/config"
	"github.com/barflyapp/barfly-data/internal/db"
	"github.com/barflyapp/barfly-data/internal/notify"
	"github.com/barflyapp/barfly-data/internal/session"
	"github.com/barflyapp/barfly-data/internal/users"

	_ "github.com/barflyapp/barfly-data/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Stores
	userStore := users.NewPostgresStore(pool.Pool)
	sessionStore := session.NewPostgresStore(pool.Pool)
	sampleStore := session.NewPostgresSampleStore(pool.Pool)
	checkinStore := checkin.NewPostgresStore(pool.Pool)
	notificationStore := notify.NewPostgresStore(pool.Pool)

	// Checkin provider
	provider := buildProvider(cfg, logger)

	// Notification fan-out and delivery
	notifier := notify.NewService(notificationStore, userStore, logger)
	smsSender := notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	messengerSender := notify.NewMessengerSender(cfg.MessengerPageToken, logger)
	deliverer := notify.NewDeliverer(notificationStore, userStore, smsSender, messengerSender, logger)
	go deliverer.StartWorker(ctx, cfg.DeliveryInterval)

	// Session monitoring
	scheduler := session.NewScheduler(logger)
	monitor := session.NewMonitor(session.MonitorConfig{
		Sessions:       sessionStore,
		Samples:        sampleStore,
		Checkins:       checkinStore,
		Users:          userStore,
		Provider:       provider,
		Notifier:       notifier,
		Scheduler:      scheduler,
		Logger:         logger,
		TickPeriod:     cfg.SessionTickPeriod,
		NotifyInterval: cfg.NotifyInterval,
		SoberGrace:     cfg.SoberGrace,
	})
	controller := session.NewController(sessionStore, monitor, scheduler, notifier, nil, logger)

	// Re-attach timers for sessions that were running before the restart.
	recovery := session.Recover(ctx, sessionStore, monitor, scheduler, logger)
	logger.Info("Session recovery complete", "summary", recovery.Summary())

	// Text command execution for the channel webhooks
	commandHandler := commands.NewHandler(controller, checkinStore, sampleStore, nil, logger)

	// Create router
	h := handler.New(handler.Deps{
		Pool:          pool.Pool,
		Cache:         appCache,
		Config:        cfg,
		Controller:    controller,
		Sessions:      sessionStore,
		Samples:       sampleStore,
		Checkins:      checkinStore,
		Users:         userStore,
		Notifications: notificationStore,
		Commands:      commandHandler,
		Messenger:     messengerSender,
		Logger:        logger,
	})
	router := api.NewRouter(h, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Barfly Data API",
			"addr", addr,
			"environment", cfg.Environment,
			"checkin_provider", cfg.CheckinProvider,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}

// buildProvider selects the external checkin source configured in
// CHECKIN_PROVIDER.
func buildProvider(cfg *config.Config, logger *slog.Logger) checkin.Provider {
	switch cfg.CheckinProvider {
	case config.ProviderUntappdAPI:
		return untappd.NewAPIClient(cfg.UntappdClientID, logger)
	case config.ProviderUntappdScrape:
		return untappd.NewScraper(logger)
	default:
		return checkin.NoneProvider{}
	}
}
