// Package handler provides HTTP handlers for all API endpoints. Handlers
// delegate to the session controller and stores; they never touch SQL
// directly except the health check.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barflyapp/barfly-data/internal/api/respond"
	"github.com/barflyapp/barfly-data/internal/cache"
	"github.com/barflyapp/barfly-data/internal/checkin"
	"github.com/barflyapp/barfly-data/internal/commands"
	"github.com/barflyapp/barfly-data/internal/config"
	"github.com/barflyapp/barfly-data/internal/notify"
	"github.com/barflyapp/barfly-data/internal/session"
	"github.com/barflyapp/barfly-data/internal/users"
)

// Deps are the shared dependencies every endpoint handler draws from.
type Deps struct {
	Pool          *pgxpool.Pool
	Cache         *cache.Cache
	Config        *config.Config
	Controller    *session.Controller
	Sessions      session.Store
	Samples       session.SampleStore
	Checkins      checkin.Store
	Users         users.Store
	Notifications notify.Store
	Commands      *commands.Handler
	Messenger     notify.Sender
	Logger        *slog.Logger
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	deps Deps
}

// New creates a Handler with shared dependencies.
func New(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handler{deps: deps}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, status, and available optimizations.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Barfly Data API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
		"optimizations": []string{
			"pgxpool_connection_pooling",
			"prepared_statements",
			"gzip_compression",
			"in_memory_cache",
			"etag_support",
		},
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	var n int
	err := h.deps.Pool.QueryRow(r.Context(), "health_check").Scan(&n)
	if err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics (active keys, expired keys).
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.deps.Cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// resolveUser loads the user named in a request, writing the error response
// itself on failure. Returns nil when the response has been written.
func (h *Handler) resolveUser(w http.ResponseWriter, r *http.Request, userID string) *users.User {
	if userID == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id is required")
		return nil
	}
	user, err := h.deps.Users.GetByID(r.Context(), userID)
	if err != nil {
		respond.WriteAppError(w, err)
		return nil
	}
	return user
}
