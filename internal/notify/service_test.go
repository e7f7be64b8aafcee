package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/smartwell-la/smartwell-platform/internal/appointments"
	"github.com/smartwell-la/smartwell-platform/internal/users"
)

type capturedEvent struct {
	Type    string
	Payload []byte
}

type captureEnqueuer struct {
	events []capturedEvent
}

func (c *captureEnqueuer) Insert(ctx context.Context, eventType string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, err
	}
	c.events = append(c.events, capturedEvent{Type: eventType, Payload: data})
	return uuid.New(), nil
}

func testDirectory() *users.InMemoryDirectory {
	dir := users.NewInMemoryDirectory()
	dir.Put(&users.User{ID: "pat-1", Name: "Ana", Email: "ana@example.com", Role: "patient"})
	dir.Put(&users.User{ID: "pro-1", Name: "Dr. Ruiz", Email: "ruiz@example.com", Role: "professional"})
	return dir
}

func testAppointment() *appointments.Appointment {
	return &appointments.Appointment{
		ID:              "appt-1",
		PatientID:       "pat-1",
		ProfessionalID:  "pro-1",
		Date:            time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:       "15:00",
		DurationMinutes: 60,
		Status:          appointments.StatusConfirmed,
	}
}

func TestAppointmentBookedFansOutToBothParticipants(t *testing.T) {
	store := NewInMemoryNotificationStore()
	outbox := &captureEnqueuer{}
	svc := NewService(store, outbox, testDirectory(), nil)

	if err := svc.AppointmentBooked(context.Background(), testAppointment()); err != nil {
		t.Fatalf("AppointmentBooked: %v", err)
	}

	for _, userID := range []string{"pat-1", "pro-1"} {
		list, err := store.ListByUser(context.Background(), userID, 10)
		if err != nil {
			t.Fatalf("ListByUser(%s): %v", userID, err)
		}
		if len(list) != 1 {
			t.Fatalf("expected 1 notification for %s, got %d", userID, len(list))
		}
		if list[0].Type != TypeBooking {
			t.Errorf("notification type = %q, want %q", list[0].Type, TypeBooking)
		}
		if list[0].Read {
			t.Error("new notification should be unread")
		}
	}

	if len(outbox.events) != 2 {
		t.Fatalf("expected 2 outbox events, got %d", len(outbox.events))
	}
	for _, ev := range outbox.events {
		if ev.Type != EventEmailSend {
			t.Errorf("event type = %q, want %q", ev.Type, EventEmailSend)
		}
		var msg EmailMessage
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if msg.To == "" || msg.Subject == "" || msg.Body == "" {
			t.Errorf("incomplete email message: %+v", msg)
		}
	}
}

func TestPaymentRejectedNotifiesOnlyPatientWhenRetryAllowed(t *testing.T) {
	store := NewInMemoryNotificationStore()
	outbox := &captureEnqueuer{}
	svc := NewService(store, outbox, testDirectory(), nil)

	a := testAppointment()
	a.Status = appointments.StatusPaymentRejected
	if err := svc.PaymentRejected(context.Background(), a, false, "comprobante ilegible"); err != nil {
		t.Fatalf("PaymentRejected: %v", err)
	}

	patientList, _ := store.ListByUser(context.Background(), "pat-1", 10)
	if len(patientList) != 1 {
		t.Fatalf("expected 1 patient notification, got %d", len(patientList))
	}
	proList, _ := store.ListByUser(context.Background(), "pro-1", 10)
	if len(proList) != 0 {
		t.Fatalf("expected no professional notifications, got %d", len(proList))
	}
	if len(outbox.events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(outbox.events))
	}
}

func TestPaymentRejectedFinalNotifiesProfessionalToo(t *testing.T) {
	store := NewInMemoryNotificationStore()
	outbox := &captureEnqueuer{}
	svc := NewService(store, outbox, testDirectory(), nil)

	a := testAppointment()
	a.Status = appointments.StatusCancelled
	a.PaymentRejections = 2
	if err := svc.PaymentRejected(context.Background(), a, true, "datos no coinciden"); err != nil {
		t.Fatalf("PaymentRejected: %v", err)
	}

	proList, _ := store.ListByUser(context.Background(), "pro-1", 10)
	if len(proList) != 1 {
		t.Fatalf("expected 1 professional notification, got %d", len(proList))
	}
	if len(outbox.events) != 2 {
		t.Fatalf("expected 2 outbox events, got %d", len(outbox.events))
	}
}

func TestSessionReminderUsesBandWording(t *testing.T) {
	store := NewInMemoryNotificationStore()
	outbox := &captureEnqueuer{}
	svc := NewService(store, outbox, testDirectory(), nil)

	if err := svc.SessionReminder(context.Background(), testAppointment(), appointments.Band1h); err != nil {
		t.Fatalf("SessionReminder: %v", err)
	}

	list, _ := store.ListByUser(context.Background(), "pat-1", 10)
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(list))
	}
	if list[0].Type != TypeSessionReminder {
		t.Errorf("type = %q, want %q", list[0].Type, TypeSessionReminder)
	}
}

func TestEnqueueSkippedWhenEmailDisabled(t *testing.T) {
	store := NewInMemoryNotificationStore()
	outbox := &captureEnqueuer{}
	svc := NewService(store, outbox, testDirectory(), nil)
	svc.DisableEmail()

	if err := svc.AppointmentBooked(context.Background(), testAppointment()); err != nil {
		t.Fatalf("AppointmentBooked: %v", err)
	}
	if len(outbox.events) != 0 {
		t.Fatalf("expected no outbox events with email disabled, got %d", len(outbox.events))
	}
	list, _ := store.ListByUser(context.Background(), "pat-1", 10)
	if len(list) != 1 {
		t.Fatal("in-app notifications should still be written")
	}
}

func TestFanOutFailsWhenParticipantUnknown(t *testing.T) {
	store := NewInMemoryNotificationStore()
	svc := NewService(store, &captureEnqueuer{}, users.NewInMemoryDirectory(), nil)

	if err := svc.AppointmentBooked(context.Background(), testAppointment()); err == nil {
		t.Fatal("expected error for unknown participants")
	}
}
