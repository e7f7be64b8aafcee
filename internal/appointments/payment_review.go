package appointments

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// ReviewPaymentInput is the professional's verdict on a submitted deposit.
type ReviewPaymentInput struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

// ReviewOutcome describes what the review did to the appointment.
type ReviewOutcome struct {
	Appointment *Appointment `json:"appointment"`
	// RetryAllowed is set on rejections that leave the patient room to
	// re-upload; false means the second strike cancelled the appointment.
	RetryAllowed bool `json:"retry_allowed"`
}

// ReviewPayment lets the owning professional approve or reject a submitted
// deposit proof. The status/counter update is atomic; notifications are
// best-effort.
func (s *Service) ReviewPayment(ctx context.Context, professionalID, appointmentID string, input ReviewPaymentInput) (*ReviewOutcome, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.review_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("smartwell.appointment_id", appointmentID),
		attribute.Bool("smartwell.approve", input.Approve),
	)

	a, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.ProfessionalID != professionalID {
		return nil, ErrNotOwner
	}
	if a.Status != StatusPaymentSubmitted {
		return nil, ErrStatusConflict
	}

	if input.Approve {
		approved, err := s.repo.ApprovePayment(ctx, appointmentID, s.now())
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		s.metrics.ObservePaymentReview("approved")
		s.dispatch(ctx, "payment_approved", func(ctx context.Context) error {
			return s.notifier.PaymentApproved(ctx, approved)
		})
		s.logger.Info("payment approved",
			"appointment_id", appointmentID,
			"professional_id", professionalID,
		)
		return &ReviewOutcome{Appointment: approved}, nil
	}

	rejected, err := s.repo.RejectPayment(ctx, appointmentID, input.Reason, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	final := rejected.Status == StatusCancelled
	if final {
		s.metrics.ObservePaymentReview("rejected_final")
	} else {
		s.metrics.ObservePaymentReview("rejected")
	}
	s.dispatch(ctx, "payment_rejected", func(ctx context.Context) error {
		return s.notifier.PaymentRejected(ctx, rejected, final, input.Reason)
	})
	s.logger.Info("payment rejected",
		"appointment_id", appointmentID,
		"professional_id", professionalID,
		"rejections", rejected.PaymentRejections,
		"final", final,
	)
	return &ReviewOutcome{Appointment: rejected, RetryAllowed: !final}, nil
}
