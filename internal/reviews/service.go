package reviews

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smartwell-la/smartwell-platform/internal/appointments"
	"github.com/smartwell-la/smartwell-platform/internal/audit"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

var reviewsTracer = otel.Tracer("smartwell.internal.reviews")

// AppointmentSource looks up appointments for eligibility checks.
// Satisfied by the appointments repository.
type AppointmentSource interface {
	GetByID(ctx context.Context, id string) (*appointments.Appointment, error)
}

// Auditor records admin actions. Satisfied by *audit.Service.
type Auditor interface {
	LogAction(ctx context.Context, entry audit.Entry) error
}

// Service implements review creation, moderation and responses.
type Service struct {
	repo         Repository
	appointments AppointmentSource
	audit        Auditor
	logger       *logging.Logger
}

// NewService creates the reviews service.
func NewService(repo Repository, appts AppointmentSource, auditor Auditor, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, appointments: appts, audit: auditor, logger: logger}
}

// Create submits a review for a completed session. The caller must be
// the patient who attended the appointment.
func (s *Service) Create(ctx context.Context, patientID string, req *CreateReviewRequest) (*Review, error) {
	ctx, span := reviewsTracer.Start(ctx, "reviews.create")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	a, err := s.appointments.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if a.PatientID != patientID {
		return nil, ErrNotEligible
	}
	if a.Status != appointments.StatusCompleted {
		return nil, fmt.Errorf("%w: appointment is %s", ErrNotEligible, a.Status)
	}

	rv := &Review{
		AppointmentID:  a.ID,
		PatientID:      patientID,
		ProfessionalID: a.ProfessionalID,
		Rating:         req.Rating,
		Comment:        strings.TrimSpace(req.Comment),
		Status:         StatusPending,
	}
	if err := s.repo.Create(ctx, rv); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("smartwell.review_id", rv.ID))
	s.logger.Info("review created", "review_id", rv.ID, "professional_id", rv.ProfessionalID)
	return rv, nil
}

// Moderate approves or rejects a review on behalf of an admin and
// audit-logs the decision.
func (s *Service) Moderate(ctx context.Context, adminUID, adminEmail, id string, status Status) (*Review, error) {
	ctx, span := reviewsTracer.Start(ctx, "reviews.moderate")
	defer span.End()
	span.SetAttributes(
		attribute.String("smartwell.review_id", id),
		attribute.String("smartwell.moderation", string(status)),
	)

	rv, err := s.repo.Moderate(ctx, id, status)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	action := audit.ActionReviewApproved
	if status == StatusRejected {
		action = audit.ActionReviewRejected
	}
	s.auditReview(ctx, adminUID, adminEmail, action, rv)

	s.logger.Info("review moderated",
		"review_id", id, "status", status, "admin_uid", adminUID)
	return rv, nil
}

// Delete removes a review on behalf of an admin and audit-logs it. The
// professional's aggregate is recomputed by the repository.
func (s *Service) Delete(ctx context.Context, adminUID, adminEmail, id string) error {
	rv, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.auditReview(ctx, adminUID, adminEmail, audit.ActionReviewDeleted, rv)
	s.logger.Info("review deleted", "review_id", id, "admin_uid", adminUID)
	return nil
}

// Respond records the professional's single response to a review about
// them.
func (s *Service) Respond(ctx context.Context, professionalID, id, response string) (*Review, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, fmt.Errorf("reviews: response is required")
	}
	if len(response) > 2000 {
		return nil, fmt.Errorf("reviews: response must be at most 2000 characters")
	}
	return s.repo.Respond(ctx, id, professionalID, response)
}

// ListForProfessional returns a professional's reviews. Public callers
// only see approved reviews.
func (s *Service) ListForProfessional(ctx context.Context, professionalID string, includeUnapproved bool) ([]*Review, error) {
	return s.repo.ListByProfessional(ctx, professionalID, !includeUnapproved)
}

// GetByAppointment returns the review for one appointment.
func (s *Service) GetByAppointment(ctx context.Context, appointmentID string) (*Review, error) {
	return s.repo.GetByAppointmentID(ctx, appointmentID)
}

func (s *Service) auditReview(ctx context.Context, adminUID, adminEmail string, action audit.Action, rv *Review) {
	if s.audit == nil {
		return
	}
	err := s.audit.LogAction(ctx, audit.Entry{
		AdminUID:   adminUID,
		AdminEmail: adminEmail,
		Action:     action,
		TargetType: "review",
		TargetID:   rv.ID,
	})
	if err != nil {
		s.logger.Error("failed to audit review action",
			"review_id", rv.ID, "action", action, "error", err)
	}
}
