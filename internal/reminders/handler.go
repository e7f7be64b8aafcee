package reminders

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartwell-la/smartwell-platform/internal/api/respond"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

// Handler exposes the cron trigger for the reminder scan.
type Handler struct {
	worker *Worker
	secret string
	logger *logging.Logger
}

// NewHandler creates the cron HTTP handler. secret gates the endpoint.
func NewHandler(worker *Worker, secret string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{worker: worker, secret: secret, logger: logger}
}

// Routes mounts the internal cron endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/cron/reminders", h.Trigger)
}

// Trigger runs one reminder scan. Callers authenticate with the
// X-Cron-Secret header.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	provided := r.Header.Get("X-Cron-Secret")
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		respond.Unauthorized(w, "invalid cron secret")
		return
	}

	report, err := h.worker.Run(r.Context())
	if err != nil {
		h.logger.Error("cron-triggered reminder scan failed", "error", err)
		respond.Internal(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(struct {
		Success bool `json:"success"`
		Report
	}{Success: true, Report: report})
}
