package notify

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/smartwell-la/smartwell-platform/internal/api/respond"
	"github.com/smartwell-la/smartwell-platform/internal/http/middleware"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

// Handler serves the authenticated user's in-app notifications.
type Handler struct {
	store  NotificationStore
	logger *logging.Logger
}

// NewHandler creates the notifications HTTP handler.
func NewHandler(store NotificationStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes mounts the notification endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/notifications", h.List)
	r.Post("/notifications/{id}/read", h.MarkRead)
}

// List returns the caller's notifications, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			respond.BadRequest(w, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	list, err := h.store.ListByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list notifications", "user_id", userID, "error", err)
		respond.Internal(w)
		return
	}
	if list == nil {
		list = []*Notification{}
	}
	respond.OK(w, "notifications retrieved", list)
}

// MarkRead flags one of the caller's notifications as read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		respond.BadRequest(w, "notification id is required")
		return
	}

	if err := h.store.MarkRead(r.Context(), userID, id); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			respond.NotFound(w, "notification not found")
			return
		}
		h.logger.Error("failed to mark notification read", "user_id", userID, "id", id, "error", err)
		respond.Internal(w)
		return
	}
	respond.OK(w, "notification marked as read", nil)
}
