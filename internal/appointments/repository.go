package appointments

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReminderBand identifies one of the two reminder windows.
type ReminderBand string

const (
	Band24h ReminderBand = "24h"
	Band1h  ReminderBand = "1h"
)

// Repository defines the interface for appointment storage. Mutating methods
// that carry a status precondition apply it atomically and return
// ErrStatusConflict when the precondition no longer holds.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error)
	ListByProfessional(ctx context.Context, professionalID string) ([]*Appointment, error)

	// SubmitPaymentProof moves pending_payment/payment_rejected to
	// payment_submitted and stores the proof reference.
	SubmitPaymentProof(ctx context.Context, id, proofURL string) (*Appointment, error)

	// ApprovePayment moves payment_submitted to confirmed/paid.
	ApprovePayment(ctx context.Context, id string, at time.Time) (*Appointment, error)

	// RejectPayment increments the rejection counter and either returns the
	// appointment to payment_rejected or, on the second strike, cancels it
	// terminally. The counter increment and status change are one update.
	RejectPayment(ctx context.Context, id, reason string, at time.Time) (*Appointment, error)

	// Cancel transitions any non-terminal appointment to cancelled.
	Cancel(ctx context.Context, id, reason string, at time.Time) (*Appointment, error)

	// Complete moves confirmed to completed.
	Complete(ctx context.Context, id string, at time.Time) (*Appointment, error)

	// Reschedule updates date/time and clears both reminder flags.
	Reschedule(ctx context.Context, id string, date time.Time, startTime string) (*Appointment, error)

	// ListInWindow returns appointments in the coarse date range with one of
	// the given statuses. Callers filter precisely in memory.
	ListInWindow(ctx context.Context, from, to time.Time, statuses []Status) ([]*Appointment, error)

	// MarkReminderSent sets the band's sent flag if it is still unset.
	// Returns false when the flag was already set (idempotent no-op).
	MarkReminderSent(ctx context.Context, id string, band ReminderBand, at time.Time) (bool, error)
}

// InMemoryRepository is a Repository backed by a mutex-guarded map, used in
// tests and local development.
type InMemoryRepository struct {
	mu           sync.RWMutex
	appointments map[string]*Appointment
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{appointments: make(map[string]*Appointment)}
}

// Create stores a new appointment.
func (r *InMemoryRepository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = StatusPendingPayment
	}
	if a.PaymentStatus == "" {
		a.PaymentStatus = PaymentPending
	}
	if err := a.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.appointments[a.ID] = clone(a)
	r.mu.Unlock()
	return nil
}

// GetByID retrieves an appointment by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return clone(a), nil
}

// ListByPatient returns all appointments for a patient.
func (r *InMemoryRepository) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	return r.listWhere(func(a *Appointment) bool { return a.PatientID == patientID })
}

// ListByProfessional returns all appointments for a professional.
func (r *InMemoryRepository) ListByProfessional(ctx context.Context, professionalID string) ([]*Appointment, error) {
	return r.listWhere(func(a *Appointment) bool { return a.ProfessionalID == professionalID })
}

func (r *InMemoryRepository) listWhere(match func(*Appointment) bool) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Appointment
	for _, a := range r.appointments {
		if match(a) {
			out = append(out, clone(a))
		}
	}
	return out, nil
}

// SubmitPaymentProof moves the appointment to payment_submitted.
func (r *InMemoryRepository) SubmitPaymentProof(ctx context.Context, id, proofURL string) (*Appointment, error) {
	return r.mutate(id, func(a *Appointment) error {
		if a.Status != StatusPendingPayment && a.Status != StatusPaymentRejected {
			return ErrStatusConflict
		}
		a.Status = StatusPaymentSubmitted
		a.PaymentStatus = PaymentSubmitted
		a.PaymentProofURL = proofURL
		return nil
	})
}

// ApprovePayment confirms the appointment.
func (r *InMemoryRepository) ApprovePayment(ctx context.Context, id string, at time.Time) (*Appointment, error) {
	return r.mutate(id, func(a *Appointment) error {
		if a.Status != StatusPaymentSubmitted {
			return ErrStatusConflict
		}
		a.Status = StatusConfirmed
		a.PaymentStatus = PaymentPaid
		approvedAt := at
		a.ApprovedAt = &approvedAt
		return nil
	})
}

// RejectPayment applies the two-strike rejection rule.
func (r *InMemoryRepository) RejectPayment(ctx context.Context, id, reason string, at time.Time) (*Appointment, error) {
	return r.mutate(id, func(a *Appointment) error {
		if a.Status != StatusPaymentSubmitted {
			return ErrStatusConflict
		}
		a.PaymentRejections++
		a.RejectionReason = reason
		if a.PaymentRejections >= MaxPaymentRejections {
			a.Status = StatusCancelled
			a.PaymentStatus = PaymentFailed
			cancelledAt := at
			a.CancelledAt = &cancelledAt
			a.CancelReason = "payment rejected twice"
		} else {
			a.Status = StatusPaymentRejected
		}
		return nil
	})
}

// Cancel transitions a non-terminal appointment to cancelled.
func (r *InMemoryRepository) Cancel(ctx context.Context, id, reason string, at time.Time) (*Appointment, error) {
	return r.mutate(id, func(a *Appointment) error {
		if a.Status == StatusCancelled || a.Status == StatusCompleted {
			return ErrStatusConflict
		}
		a.Status = StatusCancelled
		cancelledAt := at
		a.CancelledAt = &cancelledAt
		a.CancelReason = reason
		return nil
	})
}

// Complete marks a confirmed session as completed.
func (r *InMemoryRepository) Complete(ctx context.Context, id string, at time.Time) (*Appointment, error) {
	return r.mutate(id, func(a *Appointment) error {
		if a.Status != StatusConfirmed {
			return ErrStatusConflict
		}
		a.Status = StatusCompleted
		return nil
	})
}

// Reschedule updates date/time and resets the reminder flags.
func (r *InMemoryRepository) Reschedule(ctx context.Context, id string, date time.Time, startTime string) (*Appointment, error) {
	return r.mutate(id, func(a *Appointment) error {
		if a.Status == StatusCancelled || a.Status == StatusCompleted {
			return ErrStatusConflict
		}
		if _, err := CombineDateTime(date, startTime); err != nil {
			return err
		}
		a.Date = date
		a.StartTime = startTime
		a.Reminders = Reminders{}
		a.Reminder24hAt = nil
		a.Reminder1hAt = nil
		return nil
	})
}

// ListInWindow returns appointments in [from, to] with one of the statuses.
func (r *InMemoryRepository) ListInWindow(ctx context.Context, from, to time.Time, statuses []Status) ([]*Appointment, error) {
	allowed := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		allowed[s] = true
	}
	return r.listWhere(func(a *Appointment) bool {
		if !allowed[a.Status] {
			return false
		}
		return !a.Date.Before(from) && !a.Date.After(to)
	})
}

// MarkReminderSent flips the band flag if unset.
func (r *InMemoryRepository) MarkReminderSent(ctx context.Context, id string, band ReminderBand, at time.Time) (bool, error) {
	var flipped bool
	_, err := r.mutate(id, func(a *Appointment) error {
		sentAt := at
		switch band {
		case Band24h:
			if a.Reminders.Sent24h {
				return nil
			}
			a.Reminders.Sent24h = true
			a.Reminder24hAt = &sentAt
		case Band1h:
			if a.Reminders.Sent1h {
				return nil
			}
			a.Reminders.Sent1h = true
			a.Reminder1hAt = &sentAt
		}
		flipped = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return flipped, nil
}

func (r *InMemoryRepository) mutate(id string, fn func(*Appointment) error) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	a.UpdatedAt = time.Now().UTC()
	return clone(a), nil
}

func clone(a *Appointment) *Appointment {
	cp := *a
	if a.ApprovedAt != nil {
		t := *a.ApprovedAt
		cp.ApprovedAt = &t
	}
	if a.CancelledAt != nil {
		t := *a.CancelledAt
		cp.CancelledAt = &t
	}
	if a.Reminder24hAt != nil {
		t := *a.Reminder24hAt
		cp.Reminder24hAt = &t
	}
	if a.Reminder1hAt != nil {
		t := *a.Reminder1hAt
		cp.Reminder1hAt = &t
	}
	return &cp
}
