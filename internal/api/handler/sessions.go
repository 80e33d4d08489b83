package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/barflyapp/barfly-data/internal/api/respond"
	"github.com/barflyapp/barfly-data/internal/cache"
	"github.com/barflyapp/barfly-data/internal/session"
)

// startSessionRequest is the POST /sessions body.
type startSessionRequest struct {
	UserID        string     `json:"user_id"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	StopTime      *time.Time `json:"stop_time,omitempty"`
	Source        string     `json:"source,omitempty"`
	PeriodSeconds *int       `json:"period_seconds,omitempty"`
}

// stopSessionRequest is the POST /sessions/stop body.
type stopSessionRequest struct {
	UserID string `json:"user_id"`
}

// StartSession creates a session and attaches its monitor timer.
// @Summary Start a drinking session
// @Description Creates a session record for the user and begins periodic BAC monitoring. At most one running session per user.
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body startSessionRequest true "Session parameters"
// @Success 201 {object} session.Record
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Router /api/v1/sessions/start [post]
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}

	user := h.resolveUser(w, r, req.UserID)
	if user == nil {
		return
	}

	source := session.Source(req.Source)
	if source == "" {
		source = session.SourceMobile
	}

	rec, err := h.deps.Controller.Start(r.Context(), user, session.StartOptions{
		StartTime:     req.StartTime,
		StopTime:      req.StopTime,
		Source:        source,
		PeriodSeconds: req.PeriodSeconds,
	})
	if err != nil {
		respond.WriteAppError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusCreated, rec)
}

// StopSession stops the user's running session.
// @Summary Stop a drinking session
// @Description Detaches the user's monitor timer and marks their latest session stopped.
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body stopSessionRequest true "User whose session to stop"
// @Success 200 {object} session.Record
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Router /api/v1/sessions/stop [post]
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	var req stopSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}

	user := h.resolveUser(w, r, req.UserID)
	if user == nil {
		return
	}

	rec, err := h.deps.Controller.Stop(r.Context(), user)
	if err != nil {
		respond.WriteAppError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, rec)
}

// CurrentSession returns the user's running session.
// @Summary Get the running session
// @Description Returns the user's currently running session, 404 when there is none.
// @Tags sessions
// @Produce json
// @Param user_id query string true "User ID"
// @Success 200 {object} session.Record
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/v1/sessions/current [get]
func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id is required")
		return
	}

	rec, err := h.deps.Sessions.RunningByUser(r.Context(), userID)
	if err != nil {
		respond.WriteAppError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, rec)
}

// ListSessions returns the user's session history, cached with ETag support.
// @Summary List a user's sessions
// @Description Returns the user's sessions newest first. Cached for 5 minutes with ETag revalidation.
// @Tags sessions
// @Produce json
// @Param user_id query string true "User ID"
// @Success 200 {array} session.Record
// @Success 304 "Not Modified"
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/sessions [get]
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id is required")
		return
	}

	cacheKey := "sessions:history:" + userID
	if data, etag, ok := h.deps.Cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLSessionHistory, true)
		return
	}

	recs, err := h.deps.Sessions.ListByUser(r.Context(), userID)
	if err != nil {
		respond.WriteAppError(w, err)
		return
	}

	data, err := json.Marshal(recs)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "encode sessions failed")
		return
	}
	etag := h.deps.Cache.Set(cacheKey, data, cache.TTLSessionHistory)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, cache.TTLSessionHistory, false)
}

// GetSession returns one session by id.
// @Summary Get a session
// @Description Returns a single session record by id.
// @Tags sessions
// @Produce json
// @Param sessionID path string true "Session ID"
// @Success 200 {object} session.Record
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/v1/sessions/{sessionID} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	rec, err := h.deps.Sessions.GetByID(r.Context(), id)
	if err != nil {
		respond.WriteAppError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, rec)
}
