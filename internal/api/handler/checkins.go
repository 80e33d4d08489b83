package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/barflyapp/barfly-data/internal/api/respond"
	"github.com/barflyapp/barfly-data/internal/checkin"
)

// createCheckinRequest is the POST /checkins body. ABV is a fraction
// (0.05 for a 5% beer), matching the stored representation.
type createCheckinRequest struct {
	UserID   string     `json:"user_id"`
	DrankAt  *time.Time `json:"drank_at,omitempty"`
	Name     string     `json:"name"`
	Producer *string    `json:"producer,omitempty"`
	ABV      float64    `json:"abv"`
	SizeOz   float64    `json:"size_oz"`
	Rating   *float64   `json:"rating,omitempty"`
	Style    *string    `json:"style,omitempty"`
}

// CreateCheckin records a drink event.
// @Summary Record a drink
// @Description Records a single drink event for the user. The next monitor tick picks it up.
// @Tags checkins
// @Accept json
// @Produce json
// @Param request body createCheckinRequest true "Drink event"
// @Success 201 {object} checkin.Checkin
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/v1/checkins [post]
func (h *Handler) CreateCheckin(w http.ResponseWriter, r *http.Request) {
	var req createCheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	if req.Name == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required")
		return
	}
	if req.ABV < 0 || req.ABV > 1 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "abv must be a fraction between 0 and 1")
		return
	}
	if req.SizeOz <= 0 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "size_oz must be positive")
		return
	}

	user := h.resolveUser(w, r, req.UserID)
	if user == nil {
		return
	}

	drankAt := time.Now().UTC()
	if req.DrankAt != nil {
		drankAt = *req.DrankAt
	}

	ev := &checkin.Checkin{
		UserID:   user.ID,
		DrankAt:  drankAt,
		Name:     req.Name,
		Producer: req.Producer,
		ABV:      req.ABV,
		SizeOz:   req.SizeOz,
		Rating:   req.Rating,
		Style:    req.Style,
	}
	if err := h.deps.Checkins.Insert(r.Context(), ev); err != nil {
		respond.WriteAppError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusCreated, ev)
}

// ListCheckins returns a user's drink events.
// @Summary List a user's drinks
// @Description Returns drink events at or after since (default: last 24 hours), newest first.
// @Tags checkins
// @Produce json
// @Param user_id query string true "User ID"
// @Param since query string false "RFC 3339 lower bound"
// @Success 200 {array} checkin.Checkin
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/checkins [get]
func (h *Handler) ListCheckins(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id is required")
		return
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "since must be RFC 3339")
			return
		}
		since = parsed
	}

	events, err := h.deps.Checkins.ListSince(r.Context(), userID, since)
	if err != nil {
		respond.WriteAppError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, events)
}
