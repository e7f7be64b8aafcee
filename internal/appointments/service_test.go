package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubNotifier records every notification hook invocation.
type stubNotifier struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (n *stubNotifier) record(event string) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
	return nil
}

func (n *stubNotifier) AppointmentBooked(ctx context.Context, a *Appointment) error {
	return n.record("booked")
}
func (n *stubNotifier) PaymentApproved(ctx context.Context, a *Appointment) error {
	return n.record("payment_approved")
}
func (n *stubNotifier) PaymentRejected(ctx context.Context, a *Appointment, final bool, reason string) error {
	if final {
		return n.record("payment_rejected_final")
	}
	return n.record("payment_rejected")
}
func (n *stubNotifier) AppointmentCancelled(ctx context.Context, a *Appointment, cancelledBy string) error {
	return n.record("cancelled_by_" + cancelledBy)
}
func (n *stubNotifier) AppointmentRescheduled(ctx context.Context, a *Appointment) error {
	return n.record("rescheduled")
}

var serviceNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *InMemoryRepository, *stubNotifier) {
	t.Helper()
	repo := NewInMemoryRepository()
	notifier := &stubNotifier{}
	svc := NewService(repo, notifier, nil, DefaultCancellationWindow, nil).
		WithClock(func() time.Time { return serviceNow })
	return svc, repo, notifier
}

func bookFor(t *testing.T, svc *Service, startsIn time.Duration) *Appointment {
	t.Helper()
	start := serviceNow.Add(startsIn)
	a, err := svc.Book(context.Background(), &CreateAppointmentRequest{
		PatientID:       "pat-1",
		ProfessionalID:  "pro-1",
		Date:            start.Format("2006-01-02"),
		StartTime:       start.Format("15:04"),
		DurationMinutes: 50,
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	return a
}

func submitProof(t *testing.T, svc *Service, id string) {
	t.Helper()
	if _, err := svc.SubmitPaymentProof(context.Background(), "pat-1", id, "https://proofs/x.jpg"); err != nil {
		t.Fatalf("SubmitPaymentProof: %v", err)
	}
}

func TestBookStartsPendingPayment(t *testing.T) {
	svc, _, notifier := newTestService(t)
	a := bookFor(t, svc, 48*time.Hour)

	if a.Status != StatusPendingPayment {
		t.Errorf("status = %q, want pending_payment", a.Status)
	}
	if a.PaymentStatus != PaymentPending {
		t.Errorf("payment_status = %q, want pending", a.PaymentStatus)
	}
	if len(notifier.events) != 1 || notifier.events[0] != "booked" {
		t.Errorf("notifications = %v", notifier.events)
	}
}

func TestPaymentApprovalConfirms(t *testing.T) {
	svc, _, notifier := newTestService(t)
	a := bookFor(t, svc, 48*time.Hour)
	submitProof(t, svc, a.ID)

	outcome, err := svc.ReviewPayment(context.Background(), "pro-1", a.ID, ReviewPaymentInput{Approve: true})
	if err != nil {
		t.Fatalf("ReviewPayment: %v", err)
	}
	if outcome.Appointment.Status != StatusConfirmed {
		t.Errorf("status = %q, want confirmed", outcome.Appointment.Status)
	}
	if outcome.Appointment.PaymentStatus != PaymentPaid {
		t.Errorf("payment_status = %q, want paid", outcome.Appointment.PaymentStatus)
	}
	if outcome.Appointment.ApprovedAt == nil {
		t.Error("approved_at not set")
	}

	found := false
	for _, e := range notifier.events {
		if e == "payment_approved" {
			found = true
		}
	}
	if !found {
		t.Errorf("notifications = %v", notifier.events)
	}
}

func TestFirstRejectionAllowsRetry(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := bookFor(t, svc, 48*time.Hour)
	submitProof(t, svc, a.ID)

	outcome, err := svc.ReviewPayment(context.Background(), "pro-1", a.ID,
		ReviewPaymentInput{Approve: false, Reason: "comprobante ilegible"})
	if err != nil {
		t.Fatalf("ReviewPayment: %v", err)
	}
	got := outcome.Appointment
	if got.Status != StatusPaymentRejected {
		t.Errorf("status = %q, want payment_rejected", got.Status)
	}
	if got.PaymentRejections != 1 {
		t.Errorf("rejections = %d, want 1", got.PaymentRejections)
	}
	if !outcome.RetryAllowed {
		t.Error("first rejection must allow retry")
	}
	if got.RejectionReason != "comprobante ilegible" {
		t.Errorf("reason = %q", got.RejectionReason)
	}
}

func TestSecondRejectionCancelsTerminally(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	a := bookFor(t, svc, 48*time.Hour)
	submitProof(t, svc, a.ID)

	if _, err := svc.ReviewPayment(context.Background(), "pro-1", a.ID,
		ReviewPaymentInput{Approve: false, Reason: "ilegible"}); err != nil {
		t.Fatalf("first rejection: %v", err)
	}
	submitProof(t, svc, a.ID)

	outcome, err := svc.ReviewPayment(context.Background(), "pro-1", a.ID,
		ReviewPaymentInput{Approve: false, Reason: "datos no coinciden"})
	if err != nil {
		t.Fatalf("second rejection: %v", err)
	}
	got := outcome.Appointment
	if got.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
	if got.PaymentStatus != PaymentFailed {
		t.Errorf("payment_status = %q, want failed", got.PaymentStatus)
	}
	if got.PaymentRejections != MaxPaymentRejections {
		t.Errorf("rejections = %d, want %d", got.PaymentRejections, MaxPaymentRejections)
	}
	if outcome.RetryAllowed {
		t.Error("second rejection must be terminal")
	}

	// Terminal: no further submissions or reviews.
	if _, err := svc.SubmitPaymentProof(context.Background(), "pat-1", a.ID, "https://proofs/y.jpg"); !errors.Is(err, ErrStatusConflict) {
		t.Errorf("resubmit after terminal: err = %v, want ErrStatusConflict", err)
	}

	stored, _ := repo.GetByID(context.Background(), a.ID)
	if stored.PaymentRejections != MaxPaymentRejections {
		t.Errorf("stored rejections = %d", stored.PaymentRejections)
	}

	foundFinal := false
	for _, e := range notifier.events {
		if e == "payment_rejected_final" {
			foundFinal = true
		}
	}
	if !foundFinal {
		t.Errorf("notifications = %v", notifier.events)
	}
}

func TestReviewPaymentGuards(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := bookFor(t, svc, 48*time.Hour)

	// Wrong starting status.
	if _, err := svc.ReviewPayment(context.Background(), "pro-1", a.ID,
		ReviewPaymentInput{Approve: true}); !errors.Is(err, ErrStatusConflict) {
		t.Errorf("pending_payment review: err = %v, want ErrStatusConflict", err)
	}

	submitProof(t, svc, a.ID)

	// Wrong professional.
	if _, err := svc.ReviewPayment(context.Background(), "pro-2", a.ID,
		ReviewPaymentInput{Approve: true}); !errors.Is(err, ErrNotOwner) {
		t.Errorf("wrong owner: err = %v, want ErrNotOwner", err)
	}

	// Missing appointment.
	if _, err := svc.ReviewPayment(context.Background(), "pro-1", "missing",
		ReviewPaymentInput{Approve: true}); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("missing: err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestConcurrentRejectionsNeverExceedMax(t *testing.T) {
	svc, repo, _ := newTestService(t)
	a := bookFor(t, svc, 48*time.Hour)
	submitProof(t, svc, a.ID)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.ReviewPayment(context.Background(), "pro-1", a.ID,
				ReviewPaymentInput{Approve: false, Reason: "race"})
		}()
	}
	wg.Wait()

	got, err := repo.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PaymentRejections > MaxPaymentRejections {
		t.Fatalf("rejections = %d, exceeded max", got.PaymentRejections)
	}
	if got.PaymentRejections != 1 {
		// Only one reviewer can win the payment_submitted precondition.
		t.Fatalf("rejections = %d, want exactly 1", got.PaymentRejections)
	}
}

func TestCancelByPatientRespectsWindow(t *testing.T) {
	svc, _, notifier := newTestService(t)

	allowed := bookFor(t, svc, 48*time.Hour)
	cancelled, err := svc.CancelByPatient(context.Background(), "pat-1", allowed.ID, "change of plans")
	if err != nil {
		t.Fatalf("CancelByPatient: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %q", cancelled.Status)
	}

	tooLate := bookFor(t, svc, 12*time.Hour)
	if _, err := svc.CancelByPatient(context.Background(), "pat-1", tooLate.ID, ""); !errors.Is(err, ErrCancellationWindow) {
		t.Fatalf("inside window: err = %v, want ErrCancellationWindow", err)
	}

	// Exactly at the boundary is denied too.
	boundary := bookFor(t, svc, 24*time.Hour)
	if _, err := svc.CancelByPatient(context.Background(), "pat-1", boundary.ID, ""); !errors.Is(err, ErrCancellationWindow) {
		t.Fatalf("boundary: err = %v, want ErrCancellationWindow", err)
	}

	found := false
	for _, e := range notifier.events {
		if e == "cancelled_by_patient" {
			found = true
		}
	}
	if !found {
		t.Errorf("notifications = %v", notifier.events)
	}
}

func TestCancellationCheckMatchesCancelDecision(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := bookFor(t, svc, 12*time.Hour)

	decision, err := svc.CancellationCheck(context.Background(), "pat-1", a.ID)
	if err != nil {
		t.Fatalf("CancellationCheck: %v", err)
	}
	if decision.CanCancel {
		t.Fatal("check allowed but cancel would be denied")
	}
	if _, err := svc.CancelByPatient(context.Background(), "pat-1", a.ID, ""); !errors.Is(err, ErrCancellationWindow) {
		t.Fatalf("err = %v, want ErrCancellationWindow", err)
	}
}

func TestCancelByAdminIgnoresWindow(t *testing.T) {
	svc, _, notifier := newTestService(t)
	a := bookFor(t, svc, time.Hour)

	cancelled, err := svc.CancelByAdmin(context.Background(), a.ID, "professional unavailable")
	if err != nil {
		t.Fatalf("CancelByAdmin: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %q", cancelled.Status)
	}

	found := false
	for _, e := range notifier.events {
		if e == "cancelled_by_admin" {
			found = true
		}
	}
	if !found {
		t.Errorf("notifications = %v", notifier.events)
	}
}

func TestRescheduleClearsReminderFlags(t *testing.T) {
	svc, repo, _ := newTestService(t)
	a := bookFor(t, svc, 48*time.Hour)
	submitProof(t, svc, a.ID)
	if _, err := svc.ReviewPayment(context.Background(), "pro-1", a.ID, ReviewPaymentInput{Approve: true}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := repo.MarkReminderSent(context.Background(), a.ID, Band24h, serviceNow); err != nil {
		t.Fatalf("MarkReminderSent: %v", err)
	}

	newStart := serviceNow.Add(72 * time.Hour)
	updated, err := svc.RescheduleByPatient(context.Background(), "pat-1", a.ID,
		newStart.Truncate(24*time.Hour), newStart.Format("15:04"))
	if err != nil {
		t.Fatalf("RescheduleByPatient: %v", err)
	}
	if updated.Reminders.Sent24h || updated.Reminders.Sent1h {
		t.Error("reminder flags survived reschedule")
	}
	if updated.Reminder24hAt != nil || updated.Reminder1hAt != nil {
		t.Error("reminder timestamps survived reschedule")
	}
}

func TestRescheduleInsideWindowDenied(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := bookFor(t, svc, 12*time.Hour)

	newStart := serviceNow.Add(72 * time.Hour)
	_, err := svc.RescheduleByPatient(context.Background(), "pat-1", a.ID,
		newStart.Truncate(24*time.Hour), newStart.Format("15:04"))
	if !errors.Is(err, ErrCancellationWindow) {
		t.Fatalf("err = %v, want ErrCancellationWindow", err)
	}
}

func TestCompleteOnlyByOwningProfessional(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := bookFor(t, svc, 48*time.Hour)
	submitProof(t, svc, a.ID)
	if _, err := svc.ReviewPayment(context.Background(), "pro-1", a.ID, ReviewPaymentInput{Approve: true}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := svc.Complete(context.Background(), "pro-2", a.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("wrong owner: err = %v, want ErrNotOwner", err)
	}

	done, err := svc.Complete(context.Background(), "pro-1", a.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", done.Status)
	}

	// Completed is terminal for completion too.
	if _, err := svc.Complete(context.Background(), "pro-1", a.ID); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("double complete: err = %v, want ErrStatusConflict", err)
	}
}

func TestNotifierFailuresNeverBlockTransitions(t *testing.T) {
	repo := NewInMemoryRepository()
	notifier := &stubNotifier{err: errors.New("smtp down")}
	svc := NewService(repo, notifier, nil, DefaultCancellationWindow, nil).
		WithClock(func() time.Time { return serviceNow })

	a := bookFor(t, svc, 48*time.Hour)
	if a.Status != StatusPendingPayment {
		t.Fatalf("booking failed because of notifier: %q", a.Status)
	}
	submitProof(t, svc, a.ID)
	outcome, err := svc.ReviewPayment(context.Background(), "pro-1", a.ID, ReviewPaymentInput{Approve: true})
	if err != nil {
		t.Fatalf("ReviewPayment: %v", err)
	}
	if outcome.Appointment.Status != StatusConfirmed {
		t.Errorf("status = %q", outcome.Appointment.Status)
	}
}

func TestGetForParticipant(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := bookFor(t, svc, 48*time.Hour)

	for _, caller := range []string{"pat-1", "pro-1"} {
		if _, err := svc.GetForParticipant(context.Background(), caller, a.ID); err != nil {
			t.Errorf("%s: %v", caller, err)
		}
	}
	if _, err := svc.GetForParticipant(context.Background(), "stranger", a.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("stranger: err = %v, want ErrNotOwner", err)
	}
}
