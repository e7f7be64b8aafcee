package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DB is the subset of pgxpool.Pool the repository needs. Satisfied by
// *pgxpool.Pool and by pgxmock pools in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const appointmentColumns = `
	id, patient_id, professional_id, date, start_time, duration_minutes,
	status, payment_status, payment_proof_url, payment_rejections,
	rejection_reason, reminder_24h_sent_at, reminder_1h_sent_at,
	approved_at, cancelled_at, cancel_reason, created_at, updated_at`

// Create inserts a new appointment row.
func (r *PostgresRepository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = StatusPendingPayment
	}
	if a.PaymentStatus == "" {
		a.PaymentStatus = PaymentPending
	}
	query := `
		INSERT INTO appointments (
			id, patient_id, professional_id, date, start_time,
			duration_minutes, status, payment_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRow(ctx, query,
		a.ID,
		a.PatientID,
		a.ProfessionalID,
		a.Date,
		a.StartTime,
		a.DurationMinutes,
		a.Status,
		a.PaymentStatus,
	).Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("appointments: insert failed: %w", err)
	}
	return nil
}

// GetByID fetches one appointment.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	query := `SELECT` + appointmentColumns + ` FROM appointments WHERE id = $1`
	a, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return a, nil
}

// ListByPatient returns a patient's appointments, most recent first.
func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments WHERE patient_id = $1 ORDER BY date DESC, start_time DESC`
	return r.list(ctx, query, patientID)
}

// ListByProfessional returns a professional's appointments, most recent first.
func (r *PostgresRepository) ListByProfessional(ctx context.Context, professionalID string) ([]*Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments WHERE professional_id = $1 ORDER BY date DESC, start_time DESC`
	return r.list(ctx, query, professionalID)
}

// SubmitPaymentProof moves the appointment to payment_submitted.
func (r *PostgresRepository) SubmitPaymentProof(ctx context.Context, id, proofURL string) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET status = 'payment_submitted',
		    payment_status = 'submitted',
		    payment_proof_url = $2,
		    updated_at = now()
		WHERE id = $1 AND status IN ('pending_payment', 'payment_rejected')
		RETURNING` + appointmentColumns
	return r.conditionalUpdate(ctx, id, query, id, proofURL)
}

// ApprovePayment confirms the appointment and marks the deposit paid.
func (r *PostgresRepository) ApprovePayment(ctx context.Context, id string, at time.Time) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET status = 'confirmed',
		    payment_status = 'paid',
		    approved_at = $2,
		    updated_at = now()
		WHERE id = $1 AND status = 'payment_submitted'
		RETURNING` + appointmentColumns
	return r.conditionalUpdate(ctx, id, query, id, at)
}

// RejectPayment increments the counter and applies the two-strike rule in a
// single conditional update so concurrent reviews cannot double-apply.
func (r *PostgresRepository) RejectPayment(ctx context.Context, id, reason string, at time.Time) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET payment_rejections = payment_rejections + 1,
		    rejection_reason = $2,
		    status = CASE WHEN payment_rejections + 1 >= $4 THEN 'cancelled' ELSE 'payment_rejected' END,
		    payment_status = CASE WHEN payment_rejections + 1 >= $4 THEN 'failed' ELSE payment_status END,
		    cancelled_at = CASE WHEN payment_rejections + 1 >= $4 THEN $3 ELSE cancelled_at END,
		    cancel_reason = CASE WHEN payment_rejections + 1 >= $4 THEN 'payment rejected twice' ELSE cancel_reason END,
		    updated_at = now()
		WHERE id = $1 AND status = 'payment_submitted'
		RETURNING` + appointmentColumns
	return r.conditionalUpdate(ctx, id, query, id, reason, at, MaxPaymentRejections)
}

// Cancel transitions a non-terminal appointment to cancelled.
func (r *PostgresRepository) Cancel(ctx context.Context, id, reason string, at time.Time) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET status = 'cancelled',
		    cancelled_at = $3,
		    cancel_reason = $2,
		    updated_at = now()
		WHERE id = $1 AND status NOT IN ('cancelled', 'completed')
		RETURNING` + appointmentColumns
	return r.conditionalUpdate(ctx, id, query, id, reason, at)
}

// Complete marks a confirmed session as completed.
func (r *PostgresRepository) Complete(ctx context.Context, id string, at time.Time) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET status = 'completed',
		    updated_at = now()
		WHERE id = $1 AND status = 'confirmed'
		RETURNING` + appointmentColumns
	return r.conditionalUpdate(ctx, id, query, id)
}

// Reschedule updates date/time and clears both reminder flags.
func (r *PostgresRepository) Reschedule(ctx context.Context, id string, date time.Time, startTime string) (*Appointment, error) {
	if _, err := CombineDateTime(date, startTime); err != nil {
		return nil, err
	}
	query := `
		UPDATE appointments
		SET date = $2,
		    start_time = $3,
		    reminder_24h_sent_at = NULL,
		    reminder_1h_sent_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND status NOT IN ('cancelled', 'completed')
		RETURNING` + appointmentColumns
	return r.conditionalUpdate(ctx, id, query, id, date, startTime)
}

// ListInWindow fetches the coarse date range; callers filter precisely.
func (r *PostgresRepository) ListInWindow(ctx context.Context, from, to time.Time, statuses []Status) ([]*Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE date >= $1 AND date <= $2 AND status = ANY($3)
		ORDER BY date, start_time`
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return r.list(ctx, query, from, to, names)
}

// MarkReminderSent sets the band's timestamp only if it is still NULL; the
// persisted flag is the sole dedupe mechanism for the reminder job.
func (r *PostgresRepository) MarkReminderSent(ctx context.Context, id string, band ReminderBand, at time.Time) (bool, error) {
	column := "reminder_24h_sent_at"
	if band == Band1h {
		column = "reminder_1h_sent_at"
	}
	query := fmt.Sprintf(`
		UPDATE appointments
		SET %[1]s = $2, updated_at = now()
		WHERE id = $1 AND %[1]s IS NULL
	`, column)
	ct, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("appointments: mark reminder sent: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: query failed: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// conditionalUpdate runs a status-guarded UPDATE ... RETURNING. A missing row
// means either the appointment does not exist (not found) or its status
// changed underneath the caller (conflict); the follow-up existence check
// tells the two apart.
func (r *PostgresRepository) conditionalUpdate(ctx context.Context, id, query string, args ...any) (*Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, query, args...))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointments: update failed: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("appointments: existence check failed: %w", err)
	}
	if !exists {
		return nil, ErrAppointmentNotFound
	}
	return nil, ErrStatusConflict
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a            Appointment
		proofURL     pgtype.Text
		rejectReason pgtype.Text
		cancelReason pgtype.Text
		reminder24h  pgtype.Timestamptz
		reminder1h   pgtype.Timestamptz
		approvedAt   pgtype.Timestamptz
		cancelledAt  pgtype.Timestamptz
	)
	if err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProfessionalID,
		&a.Date,
		&a.StartTime,
		&a.DurationMinutes,
		&a.Status,
		&a.PaymentStatus,
		&proofURL,
		&a.PaymentRejections,
		&rejectReason,
		&reminder24h,
		&reminder1h,
		&approvedAt,
		&cancelledAt,
		&cancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.PaymentProofURL = proofURL.String
	a.RejectionReason = rejectReason.String
	a.CancelReason = cancelReason.String
	if reminder24h.Valid {
		t := reminder24h.Time
		a.Reminder24hAt = &t
		a.Reminders.Sent24h = true
	}
	if reminder1h.Valid {
		t := reminder1h.Time
		a.Reminder1hAt = &t
		a.Reminders.Sent1h = true
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		a.ApprovedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		a.CancelledAt = &t
	}

	// Reject malformed documents at the read boundary rather than letting
	// unknown statuses flow into business logic.
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}
