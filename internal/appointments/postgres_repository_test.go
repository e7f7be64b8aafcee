package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
)

var pgNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var appointmentCols = []string{
	"id", "patient_id", "professional_id", "date", "start_time", "duration_minutes",
	"status", "payment_status", "payment_proof_url", "payment_rejections",
	"rejection_reason", "reminder_24h_sent_at", "reminder_1h_sent_at",
	"approved_at", "cancelled_at", "cancel_reason", "created_at", "updated_at",
}

func apptRow(status Status, paymentStatus PaymentStatus, rejections int) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentCols).AddRow(
		"appt-1", "pat-1", "pro-1",
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), "15:00", 50,
		string(status), string(paymentStatus), nil, rejections,
		nil, nil, nil, nil, nil, nil, pgNow, pgNow,
	)
}

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock), mock
}

func TestPostgresRejectPaymentSecondStrike(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("UPDATE appointments").
		WithArgs("appt-1", "datos no coinciden", pgNow, MaxPaymentRejections).
		WillReturnRows(apptRow(StatusCancelled, PaymentFailed, 2))

	a, err := repo.RejectPayment(context.Background(), "appt-1", "datos no coinciden", pgNow)
	if err != nil {
		t.Fatalf("RejectPayment: %v", err)
	}
	if a.Status != StatusCancelled || a.PaymentStatus != PaymentFailed || a.PaymentRejections != 2 {
		t.Fatalf("appointment = %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresConditionalUpdateDistinguishesMissingFromConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	// No row updated, appointment exists: the status precondition failed.
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("appt-1", pgNow).
		WillReturnRows(pgxmock.NewRows(appointmentCols))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("appt-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := repo.ApprovePayment(context.Background(), "appt-1", pgNow)
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("err = %v, want ErrStatusConflict", err)
	}

	// No row updated, appointment missing entirely.
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("appt-2", pgNow).
		WillReturnRows(pgxmock.NewRows(appointmentCols))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("appt-2").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = repo.ApprovePayment(context.Background(), "appt-2", pgNow)
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("err = %v, want ErrAppointmentNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresMarkReminderSentClaimsOnce(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE appointments").
		WithArgs("appt-1", pgNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	claimed, err := repo.MarkReminderSent(context.Background(), "appt-1", Band24h, pgNow)
	if err != nil {
		t.Fatalf("MarkReminderSent: %v", err)
	}
	if !claimed {
		t.Fatal("first claim should succeed")
	}

	// Flag already set: zero rows affected, no error.
	mock.ExpectExec("UPDATE appointments").
		WithArgs("appt-1", pgNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	claimed, err = repo.MarkReminderSent(context.Background(), "appt-1", Band24h, pgNow)
	if err != nil {
		t.Fatalf("second MarkReminderSent: %v", err)
	}
	if claimed {
		t.Fatal("second claim must be a no-op")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresGetByIDRejectsUnknownStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT").
		WithArgs("appt-1").
		WillReturnRows(apptRow(Status("archived"), PaymentPending, 0))

	_, err := repo.GetByID(context.Background(), "appt-1")
	if err == nil {
		t.Fatal("unknown status must be rejected at the read boundary")
	}
}
