package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/barflyapp/barfly-data/internal/api/respond"
)

// ListNotifications returns a user's notifications.
// @Summary List notifications
// @Description Returns the user's notifications newest first. Pass unread=true to filter to unread only.
// @Tags notifications
// @Produce json
// @Param userID path string true "User ID"
// @Param unread query bool false "Only unread notifications"
// @Success 200 {array} notify.Notification
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/users/{userID}/notifications [get]
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "user id is required")
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	items, err := h.deps.Notifications.ListByUser(r.Context(), userID, unreadOnly)
	if err != nil {
		respond.WriteAppError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, items)
}

// MarkNotificationRead flips a notification's read flag.
// @Summary Mark a notification read
// @Description Marks the notification read. Idempotent.
// @Tags notifications
// @Produce json
// @Param notificationID path string true "Notification ID"
// @Success 204 "No Content"
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/v1/notifications/{notificationID}/read [post]
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notificationID")
	if err := h.deps.Notifications.MarkRead(r.Context(), id); err != nil {
		respond.WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
