package handler

import (
	"encoding/json"
	"net/http"

	"github.com/barflyapp/barfly-data/internal/api/respond"
	"github.com/barflyapp/barfly-data/internal/cache"
)

// CurrentBAC returns the user's most recent BAC sample.
// @Summary Current BAC estimate
// @Description Returns the user's latest recorded BAC sample, 404 when the user has none.
// @Tags bac
// @Produce json
// @Param user_id query string true "User ID"
// @Success 200 {object} session.Sample
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/v1/bac/current [get]
func (h *Handler) CurrentBAC(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id is required")
		return
	}

	sample, err := h.deps.Samples.Latest(r.Context(), userID)
	if err != nil {
		respond.WriteAppError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, sample)
}

// Leaderboard returns the highest recent BAC per user, cached with ETag
// support.
// @Summary BAC leaderboard
// @Description Returns each recently-active user's latest BAC sample, highest first. Cached for 1 minute with ETag revalidation.
// @Tags bac
// @Produce json
// @Success 200 {array} session.LeaderboardRow
// @Success 304 "Not Modified"
// @Router /api/v1/bac/leaderboard [get]
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "bac:leaderboard"
	if data, etag, ok := h.deps.Cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLLeaderboard, true)
		return
	}

	rows, err := h.deps.Samples.Leaderboard(r.Context())
	if err != nil {
		respond.WriteAppError(w, err)
		return
	}

	data, err := json.Marshal(rows)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "encode leaderboard failed")
		return
	}
	etag := h.deps.Cache.Set(cacheKey, data, cache.TTLLeaderboard)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, cache.TTLLeaderboard, false)
}
