package reviews

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartwell-la/smartwell-platform/internal/api/respond"
	"github.com/smartwell-la/smartwell-platform/internal/appointments"
	"github.com/smartwell-la/smartwell-platform/internal/http/middleware"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

// Handler serves review endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the reviews HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// PublicRoutes mounts unauthenticated review listing.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/professionals/{id}/reviews", h.ListForProfessional)
}

// PatientRoutes mounts endpoints for the patient role.
func (h *Handler) PatientRoutes(r chi.Router) {
	r.Post("/reviews", h.Create)
}

// ProfessionalRoutes mounts endpoints for the professional role.
func (h *Handler) ProfessionalRoutes(r chi.Router) {
	r.Post("/reviews/{id}/response", h.Respond)
}

// AdminRoutes mounts moderation endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/reviews/{id}/moderate", h.Moderate)
	r.Delete("/reviews/{id}", h.Delete)
}

// Create submits a review for a completed session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	patientID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	var req CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}

	rv, err := h.service.Create(r.Context(), patientID, &req)
	if err != nil {
		switch {
		case errors.Is(err, appointments.ErrAppointmentNotFound):
			respond.NotFound(w, "appointment not found")
		case errors.Is(err, ErrNotEligible):
			respond.Forbidden(w, "appointment is not eligible for review")
		case errors.Is(err, ErrAlreadyReviewed):
			respond.Conflict(w, "appointment already reviewed")
		case errors.Is(err, ErrInvalidRating):
			respond.BadRequest(w, "rating must be between 1 and 5")
		default:
			respond.BadRequest(w, err.Error())
		}
		return
	}
	respond.Created(w, "review submitted for moderation", rv)
}

// ListForProfessional lists a professional's approved reviews.
func (h *Handler) ListForProfessional(w http.ResponseWriter, r *http.Request) {
	professionalID := chi.URLParam(r, "id")

	claims, _ := middleware.ClaimsFromContext(r.Context())
	includeUnapproved := claims != nil && claims.Role == middleware.RoleAdmin

	list, err := h.service.ListForProfessional(r.Context(), professionalID, includeUnapproved)
	if err != nil {
		h.logger.Error("failed to list reviews", "professional_id", professionalID, "error", err)
		respond.Internal(w)
		return
	}
	if list == nil {
		list = []*Review{}
	}
	respond.OK(w, "reviews retrieved", list)
}

type moderateRequest struct {
	Status string `json:"status"`
}

// Moderate approves or rejects a pending review (admin only).
func (h *Handler) Moderate(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	var req moderateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}

	rv, err := h.service.Moderate(r.Context(), claims.Subject, claims.Email, chi.URLParam(r, "id"), Status(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidModeration):
			respond.BadRequest(w, "status must be approved or rejected")
		case errors.Is(err, ErrReviewNotFound):
			respond.NotFound(w, "review not found")
		default:
			h.logger.Error("moderation failed", "error", err)
			respond.Internal(w)
		}
		return
	}
	respond.OK(w, "review moderated", rv)
}

// Delete removes a review (admin only).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	err := h.service.Delete(r.Context(), claims.Subject, claims.Email, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrReviewNotFound) {
			respond.NotFound(w, "review not found")
			return
		}
		h.logger.Error("review delete failed", "error", err)
		respond.Internal(w)
		return
	}
	respond.OK(w, "review deleted", nil)
}

type respondRequest struct {
	Response string `json:"response"`
}

// Respond records the professional's response to a review.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}

	rv, err := h.service.Respond(r.Context(), professionalID, chi.URLParam(r, "id"), req.Response)
	if err != nil {
		switch {
		case errors.Is(err, ErrReviewNotFound):
			respond.NotFound(w, "review not found")
		case errors.Is(err, ErrNotReviewOwner):
			respond.Forbidden(w, "review does not belong to you")
		case errors.Is(err, ErrAlreadyResponded):
			respond.Conflict(w, "review already has a response")
		default:
			respond.BadRequest(w, err.Error())
		}
		return
	}
	respond.OK(w, "response recorded", rv)
}
