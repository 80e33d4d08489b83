package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/barflyapp/barfly-data/internal/api/handler"
	"github.com/barflyapp/barfly-data/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(h *handler.Handler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "Link", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// Channel webhooks
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/sms", h.SMSWebhook)
		r.Get("/messenger", h.MessengerVerify)
		r.Post("/messenger", h.MessengerWebhook)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Sessions
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/start", h.StartSession)
			r.Post("/stop", h.StopSession)
			r.Get("/", h.ListSessions)
			r.Get("/current", h.CurrentSession)
			r.Get("/{sessionID}", h.GetSession)
		})

		// Checkins
		r.Post("/checkins", h.CreateCheckin)
		r.Get("/checkins", h.ListCheckins)

		// BAC
		r.Get("/bac/current", h.CurrentBAC)
		r.Get("/bac/leaderboard", h.Leaderboard)

		// Notifications
		r.Get("/users/{userID}/notifications", h.ListNotifications)
		r.Post("/notifications/{notificationID}/read", h.MarkNotificationRead)
	})

	return r
}
