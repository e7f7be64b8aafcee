package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartwell-la/smartwell-platform/internal/api/respond"
	"github.com/smartwell-la/smartwell-platform/internal/http/middleware"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

// Auditor records admin actions. Satisfied by *audit.Service.
type Auditor interface {
	LogAppointmentCancelled(ctx context.Context, adminUID, adminEmail, appointmentID, reason string) error
}

// Handler serves the appointment lifecycle endpoints.
type Handler struct {
	service *Service
	audit   Auditor
	logger  *logging.Logger
}

// NewHandler creates the appointments HTTP handler.
func NewHandler(service *Service, auditor Auditor, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, audit: auditor, logger: logger}
}

// PatientRoutes mounts endpoints for the patient role.
func (h *Handler) PatientRoutes(r chi.Router) {
	r.Post("/appointments", h.Book)
	r.Get("/appointments", h.ListMine)
	r.Get("/appointments/{id}", h.Get)
	r.Post("/appointments/{id}/payment-proof", h.SubmitPaymentProof)
	r.Get("/appointments/{id}/cancellation-check", h.CancellationCheck)
	r.Post("/appointments/{id}/cancel", h.Cancel)
	r.Post("/appointments/{id}/reschedule", h.Reschedule)
}

// ProfessionalRoutes mounts endpoints for the professional role.
func (h *Handler) ProfessionalRoutes(r chi.Router) {
	r.Get("/appointments", h.ListSchedule)
	r.Get("/appointments/{id}", h.Get)
	r.Post("/appointments/{id}/payment-review", h.ReviewPayment)
	r.Post("/appointments/{id}/complete", h.Complete)
}

// AdminRoutes mounts back-office endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/appointments/{id}/cancel", h.AdminCancel)
}

// Book creates an appointment awaiting payment.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	patientID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	req.PatientID = patientID

	a, err := h.service.Book(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respond.Created(w, "appointment created, awaiting payment", a)
}

// ListMine lists the caller's appointments as a patient.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}
	list, err := h.service.ListForPatient(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list appointments", "patient_id", userID, "error", err)
		respond.Internal(w)
		return
	}
	if list == nil {
		list = []*Appointment{}
	}
	respond.OK(w, "appointments retrieved", list)
}

// ListSchedule lists the caller's appointments as a professional.
func (h *Handler) ListSchedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}
	list, err := h.service.ListForProfessional(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list schedule", "professional_id", userID, "error", err)
		respond.Internal(w)
		return
	}
	if list == nil {
		list = []*Appointment{}
	}
	respond.OK(w, "appointments retrieved", list)
}

// Get returns one appointment to one of its participants.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}
	a, err := h.service.GetForParticipant(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respond.OK(w, "appointment retrieved", a)
}

type paymentProofRequest struct {
	ProofURL string `json:"proof_url"`
}

// SubmitPaymentProof attaches the deposit receipt and moves the
// appointment to payment_submitted.
func (h *Handler) SubmitPaymentProof(w http.ResponseWriter, r *http.Request) {
	patientID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	var req paymentProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	if req.ProofURL == "" {
		respond.BadRequest(w, "proof_url is required")
		return
	}

	a, err := h.service.SubmitPaymentProof(r.Context(), patientID, chi.URLParam(r, "id"), req.ProofURL)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respond.OK(w, "payment proof submitted for review", a)
}

// CancellationCheck reports whether the patient may still cancel for free.
func (h *Handler) CancellationCheck(w http.ResponseWriter, r *http.Request) {
	patientID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}
	decision, err := h.service.CancellationCheck(r.Context(), patientID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respond.OK(w, "cancellation policy evaluated", decision)
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Cancel cancels the patient's own appointment inside the policy window.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	patientID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	a, err := h.service.CancelByPatient(r.Context(), patientID, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respond.OK(w, "appointment cancelled", a)
}

type rescheduleRequest struct {
	Date      string `json:"date"` // "2006-01-02"
	StartTime string `json:"start_time"`
}

// Reschedule moves the session to a new slot and re-arms its reminders.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	patientID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		respond.BadRequest(w, "date must be YYYY-MM-DD")
		return
	}

	a, err := h.service.RescheduleByPatient(r.Context(), patientID, chi.URLParam(r, "id"), date, req.StartTime)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respond.OK(w, "appointment rescheduled", a)
}

// ReviewPayment lets the owning professional approve or reject the
// submitted deposit proof.
func (h *Handler) ReviewPayment(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	var input ReviewPaymentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	if !input.Approve && input.Reason == "" {
		respond.BadRequest(w, "reason is required when rejecting")
		return
	}

	outcome, err := h.service.ReviewPayment(r.Context(), professionalID, chi.URLParam(r, "id"), input)
	if err != nil {
		h.respondError(w, err)
		return
	}

	msg := "payment approved, appointment confirmed"
	if !input.Approve {
		msg = "payment rejected, patient may retry"
		if !outcome.RetryAllowed {
			msg = "payment rejected, appointment cancelled"
		}
	}
	respond.OK(w, msg, outcome)
}

// Complete marks the caller's confirmed session as held.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	professionalID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}
	a, err := h.service.Complete(r.Context(), professionalID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respond.OK(w, "appointment completed", a)
}

// AdminCancel force-cancels regardless of the policy window and
// audit-logs the action.
func (h *Handler) AdminCancel(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	id := chi.URLParam(r, "id")
	a, err := h.service.CancelByAdmin(r.Context(), id, req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if h.audit != nil {
		if err := h.audit.LogAppointmentCancelled(r.Context(), claims.Subject, claims.Email, id, req.Reason); err != nil {
			h.logger.Error("failed to audit admin cancellation", "appointment_id", id, "error", err)
		}
	}
	respond.OK(w, "appointment cancelled", a)
}

// respondError maps domain errors onto the HTTP envelope.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		respond.NotFound(w, "appointment not found")
	case errors.Is(err, ErrNotOwner):
		respond.Forbidden(w, "appointment does not belong to you")
	case errors.Is(err, ErrStatusConflict):
		respond.Conflict(w, "appointment is not in a valid state for this operation")
	case errors.Is(err, ErrCancellationWindow):
		respond.Conflict(w, "cancellation window has passed")
	case errors.Is(err, ErrInvalidDuration), errors.Is(err, ErrMissingParticipant),
		errors.Is(err, ErrMissingID), errors.Is(err, ErrInvalidSchedule):
		respond.BadRequest(w, err.Error())
	default:
		h.logger.Error("appointment operation failed", "error", err)
		respond.Internal(w)
	}
}
