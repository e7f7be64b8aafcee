package appointments

import "errors"

var (
	// ErrAppointmentNotFound is returned when an appointment is not found
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrNotOwner is returned when the caller is not a participant of the appointment
	ErrNotOwner = errors.New("caller does not own this appointment")

	// ErrStatusConflict is returned when the operation is not legal in the current status
	ErrStatusConflict = errors.New("operation not allowed in current appointment status")

	// ErrCancellationWindow is returned when the cancellation window has closed
	ErrCancellationWindow = errors.New("cancellation window has closed")

	// ErrMissingID is returned when a stored document has no identifier
	ErrMissingID = errors.New("appointment id is required")

	// ErrMissingParticipant is returned when patient or professional is missing
	ErrMissingParticipant = errors.New("patient and professional ids are required")

	// ErrUnknownStatus is returned when a stored document carries an unknown status
	ErrUnknownStatus = errors.New("unknown appointment status")

	// ErrUnknownPaymentStatus is returned when a stored document carries an unknown payment status
	ErrUnknownPaymentStatus = errors.New("unknown payment status")

	// ErrInvalidDuration is returned when the session duration is non-positive
	ErrInvalidDuration = errors.New("session duration must be positive")

	// ErrInvalidSchedule is returned when a date or start time cannot be parsed
	ErrInvalidSchedule = errors.New("invalid session date or start time")
)
