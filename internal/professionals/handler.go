package professionals

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/smartwell-la/smartwell-platform/internal/api/respond"
	"github.com/smartwell-la/smartwell-platform/internal/http/middleware"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

// Handler serves professional profile endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the professionals HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// PublicRoutes mounts unauthenticated discovery endpoints.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/professionals", h.Search)
	r.Get("/professionals/{id}", h.Get)
}

// ProfessionalRoutes mounts endpoints for the professional role.
func (h *Handler) ProfessionalRoutes(r chi.Router) {
	r.Post("/professionals", h.Register)
	r.Get("/professionals/me", h.Me)
}

// AdminRoutes mounts back-office endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Patch("/professionals/{id}/status", h.SetStatus)
}

// Search lists approved professionals.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := SearchFilter{Specialty: q.Get("specialty")}

	if raw := q.Get("max_price_cents"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			respond.BadRequest(w, "max_price_cents must be a non-negative integer")
			return
		}
		filter.MaxPriceCents = v
	}
	if raw := q.Get("min_rating"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 5 {
			respond.BadRequest(w, "min_rating must be between 0 and 5")
			return
		}
		filter.MinRating = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 100 {
			respond.BadRequest(w, "limit must be between 1 and 100")
			return
		}
		filter.Limit = v
	}

	list, err := h.service.Search(r.Context(), filter)
	if err != nil {
		h.logger.Error("professional search failed", "error", err)
		respond.Internal(w)
		return
	}
	if list == nil {
		list = []*Professional{}
	}
	respond.OK(w, "professionals retrieved", list)
}

// Get returns one profile. Profiles that are not approved are only
// visible to admins and their owner.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			respond.NotFound(w, "professional not found")
			return
		}
		h.logger.Error("failed to get professional", "id", id, "error", err)
		respond.Internal(w)
		return
	}

	if p.Status != StatusApproved && !canSeeUnapproved(r, p) {
		respond.NotFound(w, "professional not found")
		return
	}
	respond.OK(w, "professional retrieved", p)
}

func canSeeUnapproved(r *http.Request, p *Professional) bool {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return false
	}
	return claims.Role == middleware.RoleAdmin || claims.Subject == p.UserID
}

// Register creates a pending profile for the authenticated user.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	req.UserID = userID

	p, err := h.service.Register(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyRegistered):
			respond.Conflict(w, "professional profile already exists")
		case errors.Is(err, ErrInvalidProfile):
			respond.BadRequest(w, err.Error())
		default:
			h.logger.Error("failed to register professional", "user_id", userID, "error", err)
			respond.Internal(w)
		}
		return
	}
	respond.Created(w, "professional profile created", p)
}

// Me returns the authenticated professional's own profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}
	p, err := h.service.GetByUserID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			respond.NotFound(w, "professional profile not found")
			return
		}
		h.logger.Error("failed to get own profile", "user_id", userID, "error", err)
		respond.Internal(w)
		return
	}
	respond.OK(w, "professional retrieved", p)
}

type setStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// SetStatus transitions a professional's status (admin only).
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}

	p, err := h.service.SetStatus(r.Context(), claims.Subject, claims.Email, id, Status(req.Status), req.Note)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			respond.BadRequest(w, "status must be one of pending, under_review, approved, rejected")
		case errors.Is(err, ErrProfessionalNotFound):
			respond.NotFound(w, "professional not found")
		default:
			h.logger.Error("status transition failed", "id", id, "error", err)
			respond.Internal(w)
		}
		return
	}
	respond.OK(w, "professional status updated", p)
}
