package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartwell-la/smartwell-platform/internal/appointments"
)

type dispatched struct {
	AppointmentID string
	Band          appointments.ReminderBand
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []dispatched
	err  error
}

func (d *recordingDispatcher) SessionReminder(ctx context.Context, a *appointments.Appointment, band appointments.ReminderBand) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	d.sent = append(d.sent, dispatched{a.ID, band})
	d.mu.Unlock()
	return nil
}

// scanTime is the fixed "now" for all worker tests.
var scanTime = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

func seedConfirmed(t *testing.T, repo *appointments.InMemoryRepository, id string, startsIn time.Duration) {
	t.Helper()
	start := scanTime.Add(startsIn)
	a := &appointments.Appointment{
		ID:              id,
		PatientID:       "pat-1",
		ProfessionalID:  "pro-1",
		Date:            start.Truncate(24 * time.Hour),
		StartTime:       start.Format("15:04"),
		DurationMinutes: 50,
	}
	ctx := context.Background()
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	if _, err := repo.SubmitPaymentProof(ctx, id, "https://proofs/x.jpg"); err != nil {
		t.Fatalf("submit %s: %v", id, err)
	}
	if _, err := repo.ApprovePayment(ctx, id, scanTime.Add(-time.Hour)); err != nil {
		t.Fatalf("approve %s: %v", id, err)
	}
}

func newWorker(repo *appointments.InMemoryRepository, d Dispatcher) *Worker {
	return NewWorker(repo, d, nil, nil, 25*time.Hour).
		WithClock(func() time.Time { return scanTime })
}

func TestRunSendsBothBands(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	seedConfirmed(t, repo, "appt-24h", 24*time.Hour)
	seedConfirmed(t, repo, "appt-1h", time.Hour)
	seedConfirmed(t, repo, "appt-far", 48*time.Hour)
	seedConfirmed(t, repo, "appt-soon", 10*time.Minute)

	d := &recordingDispatcher{}
	report, err := newWorker(repo, d).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Sent24h != 1 || report.Sent1h != 1 || report.Errors != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(d.sent) != 2 {
		t.Fatalf("dispatched %d reminders, want 2", len(d.sent))
	}
	for _, s := range d.sent {
		switch s.AppointmentID {
		case "appt-24h":
			if s.Band != appointments.Band24h {
				t.Errorf("appt-24h got band %s", s.Band)
			}
		case "appt-1h":
			if s.Band != appointments.Band1h {
				t.Errorf("appt-1h got band %s", s.Band)
			}
		default:
			t.Errorf("unexpected reminder for %s", s.AppointmentID)
		}
	}
}

func TestRunBandEdges(t *testing.T) {
	tests := []struct {
		name     string
		startsIn time.Duration
		band     appointments.ReminderBand
		sent     bool
	}{
		{"just inside 24h lower", 23*time.Hour + 30*time.Minute, appointments.Band24h, true},
		{"just inside 24h upper", 24*time.Hour + 30*time.Minute, appointments.Band24h, true},
		{"below 24h band", 23 * time.Hour, "", false},
		{"above 24h band", 24*time.Hour + 31*time.Minute, "", false},
		{"1h lower edge", 45 * time.Minute, appointments.Band1h, true},
		{"1h upper edge", 75 * time.Minute, appointments.Band1h, true},
		{"below 1h band", 44 * time.Minute, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := appointments.NewInMemoryRepository()
			seedConfirmed(t, repo, "appt-1", tt.startsIn)

			d := &recordingDispatcher{}
			if _, err := newWorker(repo, d).Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if !tt.sent {
				if len(d.sent) != 0 {
					t.Fatalf("unexpected dispatch: %+v", d.sent)
				}
				return
			}
			if len(d.sent) != 1 || d.sent[0].Band != tt.band {
				t.Fatalf("dispatched %+v, want band %s", d.sent, tt.band)
			}
		})
	}
}

func TestRunIsIdempotentAcrossRepeatedScans(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	seedConfirmed(t, repo, "appt-1", 24*time.Hour)

	d := &recordingDispatcher{}
	w := newWorker(repo, d)

	first, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Sent24h != 1 {
		t.Fatalf("first report = %+v", first)
	}

	for i := 0; i < 3; i++ {
		report, err := w.Run(context.Background())
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		if report.Sent24h != 0 || report.Sent1h != 0 {
			t.Fatalf("rescan %d sent again: %+v", i, report)
		}
	}
	if len(d.sent) != 1 {
		t.Fatalf("dispatched %d times, want exactly 1", len(d.sent))
	}
}

func TestRunSkipsNonConfirmed(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	a := &appointments.Appointment{
		ID: "appt-pending", PatientID: "pat-1", ProfessionalID: "pro-1",
		Date:      scanTime.Add(24 * time.Hour).Truncate(24 * time.Hour),
		StartTime: scanTime.Add(24 * time.Hour).Format("15:04"), DurationMinutes: 50,
	}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("seed: %v", err)
	}

	d := &recordingDispatcher{}
	report, err := newWorker(repo, d).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Checked != 0 || len(d.sent) != 0 {
		t.Fatalf("pending appointment was considered: %+v", report)
	}
}

func TestRunCountsDispatchErrorsAndContinues(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	seedConfirmed(t, repo, "appt-1", 24*time.Hour)
	seedConfirmed(t, repo, "appt-2", 24*time.Hour)

	d := &recordingDispatcher{err: errors.New("smtp down")}
	report, err := newWorker(repo, d).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Errors != 2 || report.Sent24h != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRescheduleRearmsReminders(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	seedConfirmed(t, repo, "appt-1", 24*time.Hour)

	d := &recordingDispatcher{}
	w := newWorker(repo, d)
	if _, err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(d.sent) != 1 {
		t.Fatalf("expected initial reminder, got %d", len(d.sent))
	}

	// Moving the session clears the flags, so the new slot reminds again.
	newStart := scanTime.Add(24 * time.Hour)
	if _, err := repo.Reschedule(context.Background(), "appt-1",
		newStart.Truncate(24*time.Hour), newStart.Format("15:04")); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if _, err := w.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(d.sent) != 2 {
		t.Fatalf("expected reminder after reschedule, got %d dispatches", len(d.sent))
	}
}
