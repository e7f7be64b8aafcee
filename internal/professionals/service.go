package professionals

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

var professionalsTracer = otel.Tracer("smartwell.internal.professionals")

// Auditor records admin actions. Satisfied by *audit.Service.
type Auditor interface {
	LogStatusChange(ctx context.Context, adminUID, adminEmail, professionalID, previous, next, note string) error
}

// Service implements professional profile operations.
type Service struct {
	repo   Repository
	audit  Auditor
	logger *logging.Logger
}

// NewService creates the professionals service.
func NewService(repo Repository, auditor Auditor, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, audit: auditor, logger: logger}
}

// Register creates a pending profile for a user.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*Professional, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	// A profile is keyed by its owner's user id, so appointment and
	// review ownership checks compare JWT subjects directly.
	p := &Professional{
		ID:              req.UserID,
		UserID:          req.UserID,
		Name:            req.Name,
		Specialty:       req.Specialty,
		Bio:             req.Bio,
		PriceCents:      req.PriceCents,
		Currency:        req.Currency,
		SessionDuration: req.SessionDuration,
		BufferTime:      req.BufferTime,
		Availability:    req.Availability,
		Status:          StatusPending,
	}
	if p.Currency == "" {
		p.Currency = "MXN"
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("professional registered", "professional_id", p.ID, "specialty", p.Specialty)
	return p, nil
}

// Get returns a profile by id.
func (s *Service) Get(ctx context.Context, id string) (*Professional, error) {
	if id == "" {
		return nil, ErrProfessionalNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// GetByUserID returns the profile owned by a user.
func (s *Service) GetByUserID(ctx context.Context, userID string) (*Professional, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// Search returns approved professionals matching the filter.
func (s *Service) Search(ctx context.Context, filter SearchFilter) ([]*Professional, error) {
	return s.repo.Search(ctx, filter)
}

// SetStatus transitions a profile's status on behalf of an admin. The
// transition and its actual previous status are audit-logged.
func (s *Service) SetStatus(ctx context.Context, adminUID, adminEmail, id string, next Status, note string) (*Professional, error) {
	ctx, span := professionalsTracer.Start(ctx, "professionals.set_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("smartwell.professional_id", id),
		attribute.String("smartwell.next_status", string(next)),
	)

	if !ValidStatuses[next] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}

	previous, updated, err := s.repo.UpdateStatus(ctx, id, next)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.audit != nil {
		if err := s.audit.LogStatusChange(ctx, adminUID, adminEmail, id, string(previous), string(next), note); err != nil {
			// The transition already happened. Surface the gap loudly
			// but do not roll back the profile change.
			s.logger.Error("failed to audit status change",
				"professional_id", id, "previous", previous, "next", next, "error", err)
		}
	}

	s.logger.Info("professional status changed",
		"professional_id", id, "previous", previous, "next", next, "admin_uid", adminUID)
	return updated, nil
}
