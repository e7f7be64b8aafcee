package appointments

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPendingPayment   Status = "pending_payment"
	StatusPaymentSubmitted Status = "payment_submitted"
	StatusConfirmed        Status = "confirmed"
	StatusPaymentRejected  Status = "payment_rejected"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
)

// PaymentStatus tracks the deposit verification state independently of the
// appointment lifecycle.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSubmitted PaymentStatus = "submitted"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// MaxPaymentRejections is the rejection count at which an appointment is
// cancelled automatically and irreversibly.
const MaxPaymentRejections = 2

// transitions lists the legal next statuses for each status. Terminal
// statuses have no entries.
var transitions = map[Status][]Status{
	StatusPendingPayment:   {StatusPaymentSubmitted, StatusCancelled},
	StatusPaymentSubmitted: {StatusConfirmed, StatusPaymentRejected, StatusCancelled},
	StatusPaymentRejected:  {StatusPaymentSubmitted, StatusCancelled},
	StatusConfirmed:        {StatusCompleted, StatusCancelled},
}

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPendingPayment, StatusPaymentSubmitted, StatusConfirmed,
		StatusPaymentRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether s is a known payment status.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentPending, PaymentSubmitted, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Reminders records which reminder bands have already fired.
type Reminders struct {
	Sent24h bool `json:"sent_24h"`
	Sent1h  bool `json:"sent_1h"`
}

// Appointment is a booked session between a patient and a professional.
type Appointment struct {
	ID                string        `json:"id"`
	PatientID         string        `json:"patient_id"`
	ProfessionalID    string        `json:"professional_id"`
	Date              time.Time     `json:"date"`       // calendar date, midnight UTC
	StartTime         string        `json:"start_time"` // local time-of-day, "15:04"
	DurationMinutes   int           `json:"duration_minutes"`
	Status            Status        `json:"status"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	PaymentProofURL   string        `json:"payment_proof_url,omitempty"`
	PaymentRejections int           `json:"payment_rejections"`
	RejectionReason   string        `json:"rejection_reason,omitempty"`
	Reminders         Reminders     `json:"reminders"`
	Reminder24hAt     *time.Time    `json:"reminder_24h_at,omitempty"`
	Reminder1hAt      *time.Time    `json:"reminder_1h_at,omitempty"`
	ApprovedAt        *time.Time    `json:"approved_at,omitempty"`
	CancelledAt       *time.Time    `json:"cancelled_at,omitempty"`
	CancelReason      string        `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// SessionStart combines the calendar date and time-of-day into a single
// instant.
func (a *Appointment) SessionStart() (time.Time, error) {
	return CombineDateTime(a.Date, a.StartTime)
}

// CombineDateTime merges a calendar date with an "HH:MM" time-of-day.
func CombineDateTime(date time.Time, startTime string) (time.Time, error) {
	tod, err := time.Parse("15:04", startTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: start time %q", ErrInvalidSchedule, startTime)
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		tod.Hour(), tod.Minute(), 0, 0, time.UTC), nil
}

// Validate checks the document shape after deserialization. Unknown or
// missing required fields are rejected rather than defaulted.
func (a *Appointment) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(a.PatientID) == "" || strings.TrimSpace(a.ProfessionalID) == "" {
		return ErrMissingParticipant
	}
	if !ValidStatus(a.Status) {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, a.Status)
	}
	if !ValidPaymentStatus(a.PaymentStatus) {
		return fmt.Errorf("%w: %q", ErrUnknownPaymentStatus, a.PaymentStatus)
	}
	if _, err := a.SessionStart(); err != nil {
		return err
	}
	if a.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

// CreateAppointmentRequest is the request body for booking checkout.
type CreateAppointmentRequest struct {
	PatientID       string `json:"-"`
	ProfessionalID  string `json:"professional_id"`
	Date            string `json:"date"` // "2006-01-02"
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Validate validates the booking request.
func (r *CreateAppointmentRequest) Validate() (time.Time, error) {
	if strings.TrimSpace(r.PatientID) == "" {
		return time.Time{}, ErrMissingParticipant
	}
	if strings.TrimSpace(r.ProfessionalID) == "" {
		return time.Time{}, ErrMissingParticipant
	}
	date, err := time.Parse(time.DateOnly, r.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidSchedule, r.Date)
	}
	if _, err := CombineDateTime(date, r.StartTime); err != nil {
		return time.Time{}, err
	}
	if r.DurationMinutes <= 0 {
		return time.Time{}, ErrInvalidDuration
	}
	return date, nil
}
