package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/smartwell-la/smartwell-platform/internal/appointments"
	"github.com/smartwell-la/smartwell-platform/internal/users"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

// EventEmailSend is the outbox event type carrying an EmailMessage payload.
const EventEmailSend = "email.send"

// Enqueuer persists events for asynchronous delivery.
type Enqueuer interface {
	Insert(ctx context.Context, eventType string, payload any) (uuid.UUID, error)
}

// Service writes in-app notifications synchronously and enqueues email
// delivery through the outbox. Every method is best-effort from the
// caller's point of view: failures surface as errors but must never
// block the appointment operation that triggered them.
type Service struct {
	store    NotificationStore
	outbox   Enqueuer
	users    users.Directory
	logger   *logging.Logger
	emailOff bool
}

// NewService creates a notification service.
func NewService(store NotificationStore, outbox Enqueuer, dir users.Directory, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, outbox: outbox, users: dir, logger: logger}
}

// DisableEmail turns off email enqueueing, used when no sender is configured.
func (s *Service) DisableEmail() { s.emailOff = true }

// AppointmentBooked notifies both participants that a booking was created
// and is awaiting payment.
func (s *Service) AppointmentBooked(ctx context.Context, a *appointments.Appointment) error {
	return s.fanOut(ctx, a, TypeBooking,
		func(u *users.User) (string, string, string) { return bookingEmail(u.Name, a) },
		participantText{
			patientTitle: "Reserva creada",
			patientBody:  "Tu sesión está reservada. Sube tu comprobante de pago para confirmarla.",
			proTitle:     "Nueva reserva",
			proBody:      "Un paciente reservó una sesión contigo. Queda pendiente de pago.",
		})
}

// PaymentApproved notifies both participants that the deposit was accepted.
func (s *Service) PaymentApproved(ctx context.Context, a *appointments.Appointment) error {
	return s.fanOut(ctx, a, TypePaymentApproved,
		func(u *users.User) (string, string, string) { return paymentApprovedEmail(u.Name, a) },
		participantText{
			patientTitle: "Pago aprobado",
			patientBody:  "Tu comprobante fue aprobado. La sesión está confirmada.",
			proTitle:     "Sesión confirmada",
			proBody:      "El pago de una sesión fue verificado. La cita está confirmada.",
		})
}

// PaymentRejected notifies the patient that their proof was rejected. Only
// the patient is notified unless the rejection is final, in which case the
// professional learns the slot was released.
func (s *Service) PaymentRejected(ctx context.Context, a *appointments.Appointment, final bool, reason string) error {
	patient, err := s.users.GetByID(ctx, a.PatientID)
	if err != nil {
		return fmt.Errorf("notify: resolve patient: %w", err)
	}

	body := "Tu comprobante fue rechazado. Puedes subir uno nuevo."
	if final {
		body = "Tu comprobante fue rechazado por segunda vez y la reserva fue cancelada."
	}
	if err := s.inApp(ctx, a.PatientID, TypePaymentRejected, "Pago rechazado", body); err != nil {
		return err
	}
	subject, text, html := paymentRejectedEmail(patient.Name, a, final, reason)
	if err := s.enqueueEmail(ctx, patient, subject, text, html); err != nil {
		return err
	}

	if final {
		pro, err := s.users.GetByID(ctx, a.ProfessionalID)
		if err != nil {
			return fmt.Errorf("notify: resolve professional: %w", err)
		}
		if err := s.inApp(ctx, a.ProfessionalID, TypePaymentRejected,
			"Reserva cancelada", "Una reserva fue cancelada por falta de pago verificado."); err != nil {
			return err
		}
		subject, text, html := cancellationEmail(pro.Name, a, "system")
		return s.enqueueEmail(ctx, pro, subject, text, html)
	}
	return nil
}

// AppointmentCancelled notifies both participants of a cancellation.
// cancelledBy is "patient", "professional", "admin" or "system".
func (s *Service) AppointmentCancelled(ctx context.Context, a *appointments.Appointment, cancelledBy string) error {
	return s.fanOut(ctx, a, TypeCancellation,
		func(u *users.User) (string, string, string) { return cancellationEmail(u.Name, a, cancelledBy) },
		participantText{
			patientTitle: "Sesión cancelada",
			patientBody:  "Tu sesión fue cancelada.",
			proTitle:     "Sesión cancelada",
			proBody:      "Una de tus sesiones fue cancelada.",
		})
}

// AppointmentRescheduled notifies both participants of the new session slot.
func (s *Service) AppointmentRescheduled(ctx context.Context, a *appointments.Appointment) error {
	return s.fanOut(ctx, a, TypeReschedule,
		func(u *users.User) (string, string, string) { return rescheduleEmail(u.Name, a) },
		participantText{
			patientTitle: "Sesión reprogramada",
			patientBody:  "Tu sesión fue reprogramada. Revisa el nuevo horario.",
			proTitle:     "Sesión reprogramada",
			proBody:      "Una de tus sesiones fue reprogramada. Revisa el nuevo horario.",
		})
}

// SessionReminder notifies both participants ahead of the session. The
// caller has already claimed the reminder flag, so duplicates are the
// caller's concern, not ours.
func (s *Service) SessionReminder(ctx context.Context, a *appointments.Appointment, band appointments.ReminderBand) error {
	when := "mañana"
	if band == appointments.Band1h {
		when = "en una hora"
	}
	return s.fanOut(ctx, a, TypeSessionReminder,
		func(u *users.User) (string, string, string) { return reminderEmail(u.Name, a, band) },
		participantText{
			patientTitle: "Recordatorio de sesión",
			patientBody:  fmt.Sprintf("Tu sesión es %s.", when),
			proTitle:     "Recordatorio de sesión",
			proBody:      fmt.Sprintf("Tienes una sesión %s.", when),
		})
}

type participantText struct {
	patientTitle, patientBody string
	proTitle, proBody         string
}

type emailBuilder func(u *users.User) (subject, body, html string)

// fanOut writes one in-app notification and enqueues one email per
// participant. The first error stops the fan-out.
func (s *Service) fanOut(ctx context.Context, a *appointments.Appointment, typ string, build emailBuilder, text participantText) error {
	patient, err := s.users.GetByID(ctx, a.PatientID)
	if err != nil {
		return fmt.Errorf("notify: resolve patient: %w", err)
	}
	pro, err := s.users.GetByID(ctx, a.ProfessionalID)
	if err != nil {
		return fmt.Errorf("notify: resolve professional: %w", err)
	}

	if err := s.inApp(ctx, patient.ID, typ, text.patientTitle, text.patientBody); err != nil {
		return err
	}
	if err := s.inApp(ctx, pro.ID, typ, text.proTitle, text.proBody); err != nil {
		return err
	}

	subject, body, html := build(patient)
	if err := s.enqueueEmail(ctx, patient, subject, body, html); err != nil {
		return err
	}
	subject, body, html = build(pro)
	return s.enqueueEmail(ctx, pro, subject, body, html)
}

func (s *Service) inApp(ctx context.Context, userID, typ, title, body string) error {
	n := &Notification{UserID: userID, Type: typ, Title: title, Body: body}
	if err := s.store.Create(ctx, n); err != nil {
		return fmt.Errorf("notify: create notification: %w", err)
	}
	return nil
}

func (s *Service) enqueueEmail(ctx context.Context, u *users.User, subject, body, html string) error {
	if s.emailOff || s.outbox == nil {
		return nil
	}
	if u.Email == "" {
		s.logger.Warn("notify: user has no email, skipping", "user_id", u.ID)
		return nil
	}
	msg := EmailMessage{To: u.Email, ToName: u.Name, Subject: subject, Body: body, HTML: html}
	if _, err := s.outbox.Insert(ctx, EventEmailSend, msg); err != nil {
		return fmt.Errorf("notify: enqueue email: %w", err)
	}
	return nil
}
