package appointments

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smartwell-la/smartwell-platform/internal/observability/metrics"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

var appointmentsTracer = otel.Tracer("smartwell.internal.appointments")

// Notifier enqueues patient/professional notifications. Implementations are
// best-effort; the service logs failures and never propagates them.
type Notifier interface {
	AppointmentBooked(ctx context.Context, a *Appointment) error
	PaymentApproved(ctx context.Context, a *Appointment) error
	PaymentRejected(ctx context.Context, a *Appointment, final bool, reason string) error
	AppointmentCancelled(ctx context.Context, a *Appointment, cancelledBy string) error
	AppointmentRescheduled(ctx context.Context, a *Appointment) error
}

// Service implements the appointment lifecycle operations.
type Service struct {
	repo     Repository
	notifier Notifier
	metrics  *metrics.PlatformMetrics
	window   time.Duration
	now      func() time.Time
	logger   *logging.Logger
}

// NewService constructs an appointment service.
func NewService(repo Repository, notifier Notifier, m *metrics.PlatformMetrics, window time.Duration, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if window <= 0 {
		window = DefaultCancellationWindow
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		window:   window,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Book creates an appointment in pending_payment at checkout.
func (s *Service) Book(ctx context.Context, req *CreateAppointmentRequest) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.book")
	defer span.End()

	date, err := req.Validate()
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:       req.PatientID,
		ProfessionalID:  req.ProfessionalID,
		Date:            date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Status:          StatusPendingPayment,
		PaymentStatus:   PaymentPending,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("smartwell.appointment_id", a.ID))

	s.dispatch(ctx, "booked", func(ctx context.Context) error {
		return s.notifier.AppointmentBooked(ctx, a)
	})

	s.logger.Info("appointment booked",
		"appointment_id", a.ID,
		"patient_id", a.PatientID,
		"professional_id", a.ProfessionalID,
	)
	return a, nil
}

// SubmitPaymentProof records the patient's deposit receipt upload.
func (s *Service) SubmitPaymentProof(ctx context.Context, patientID, appointmentID, proofURL string) (*Appointment, error) {
	if _, err := s.ownedByPatient(ctx, patientID, appointmentID); err != nil {
		return nil, err
	}
	a, err := s.repo.SubmitPaymentProof(ctx, appointmentID, proofURL)
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment proof submitted", "appointment_id", a.ID, "patient_id", patientID)
	return a, nil
}

// CancellationCheck runs the policy without side effects.
func (s *Service) CancellationCheck(ctx context.Context, patientID, appointmentID string) (CancellationDecision, error) {
	a, err := s.ownedByPatient(ctx, patientID, appointmentID)
	if err != nil {
		return CancellationDecision{}, err
	}
	return CheckCancellation(a.Date, a.StartTime, s.now(), s.window)
}

// CancelByPatient cancels an appointment if the policy window is still open.
func (s *Service) CancelByPatient(ctx context.Context, patientID, appointmentID, reason string) (*Appointment, error) {
	a, err := s.ownedByPatient(ctx, patientID, appointmentID)
	if err != nil {
		return nil, err
	}

	decision, err := CheckCancellation(a.Date, a.StartTime, s.now(), s.window)
	if err != nil {
		return nil, err
	}
	if !decision.CanCancel {
		return nil, ErrCancellationWindow
	}

	if reason == "" {
		reason = "cancelled by patient"
	}
	cancelled, err := s.repo.Cancel(ctx, appointmentID, reason, s.now())
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, "cancelled", func(ctx context.Context) error {
		return s.notifier.AppointmentCancelled(ctx, cancelled, "patient")
	})
	s.logger.Info("appointment cancelled by patient", "appointment_id", appointmentID)
	return cancelled, nil
}

// RescheduleByPatient moves the session, subject to the same time window as
// cancellation, and resets the reminder flags.
func (s *Service) RescheduleByPatient(ctx context.Context, patientID, appointmentID string, date time.Time, startTime string) (*Appointment, error) {
	a, err := s.ownedByPatient(ctx, patientID, appointmentID)
	if err != nil {
		return nil, err
	}

	decision, err := CheckCancellation(a.Date, a.StartTime, s.now(), s.window)
	if err != nil {
		return nil, err
	}
	if !decision.CanCancel {
		return nil, ErrCancellationWindow
	}

	moved, err := s.repo.Reschedule(ctx, appointmentID, date, startTime)
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, "rescheduled", func(ctx context.Context) error {
		return s.notifier.AppointmentRescheduled(ctx, moved)
	})
	s.logger.Info("appointment rescheduled", "appointment_id", appointmentID)
	return moved, nil
}

// CancelByAdmin force-cancels regardless of the policy window.
func (s *Service) CancelByAdmin(ctx context.Context, appointmentID, reason string) (*Appointment, error) {
	if reason == "" {
		reason = "cancelled by admin"
	}
	cancelled, err := s.repo.Cancel(ctx, appointmentID, reason, s.now())
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, "cancelled", func(ctx context.Context) error {
		return s.notifier.AppointmentCancelled(ctx, cancelled, "admin")
	})
	s.logger.Info("appointment cancelled by admin", "appointment_id", appointmentID, "reason", reason)
	return cancelled, nil
}

// Complete marks a confirmed session as held. Only the owning professional
// may complete it.
func (s *Service) Complete(ctx context.Context, professionalID, appointmentID string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.ProfessionalID != professionalID {
		return nil, ErrNotOwner
	}
	return s.repo.Complete(ctx, appointmentID, s.now())
}

// GetForParticipant returns the appointment if the caller is the patient or
// the professional on it.
func (s *Service) GetForParticipant(ctx context.Context, callerID, appointmentID string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.PatientID != callerID && a.ProfessionalID != callerID {
		return nil, ErrNotOwner
	}
	return a, nil
}

// ListForPatient returns a patient's own appointments.
func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// ListForProfessional returns a professional's own appointments.
func (s *Service) ListForProfessional(ctx context.Context, professionalID string) ([]*Appointment, error) {
	return s.repo.ListByProfessional(ctx, professionalID)
}

func (s *Service) ownedByPatient(ctx context.Context, patientID, appointmentID string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.PatientID != patientID {
		return nil, ErrNotOwner
	}
	return a, nil
}

// dispatch runs a notification hook best-effort. Delivery failures are
// logged and never fail the state transition.
func (s *Service) dispatch(ctx context.Context, event string, fn func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	if err := fn(ctx); err != nil {
		s.logger.Error("notification dispatch failed", "event", event, "error", err)
	}
}
