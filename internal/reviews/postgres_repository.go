package reviews

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs. Satisfied by
// *pgxpool.Pool and by pgxmock pools in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores reviews in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("reviews: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const reviewColumns = `
	id, appointment_id, patient_id, professional_id, rating, comment,
	status, response, responded_at, created_at, updated_at`

// Create inserts a new pending review. The unique index on
// appointment_id enforces one review per appointment.
func (r *PostgresRepository) Create(ctx context.Context, rv *Review) error {
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	if rv.Status == "" {
		rv.Status = StatusPending
	}
	query := `
		INSERT INTO reviews (id, appointment_id, patient_id, professional_id, rating, comment, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		rv.ID, rv.AppointmentID, rv.PatientID, rv.ProfessionalID, rv.Rating, rv.Comment, rv.Status,
	).Scan(&rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyReviewed
		}
		return fmt.Errorf("reviews: insert review: %w", err)
	}
	return nil
}

// GetByID returns a review by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Review, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)
	return scanReview(row)
}

// GetByAppointmentID returns the review for an appointment.
func (r *PostgresRepository) GetByAppointmentID(ctx context.Context, appointmentID string) (*Review, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE appointment_id = $1`, appointmentID)
	return scanReview(row)
}

// ListByProfessional returns a professional's reviews, newest first.
func (r *PostgresRepository) ListByProfessional(ctx context.Context, professionalID string, approvedOnly bool) ([]*Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE professional_id = $1`
	if approvedOnly {
		query += ` AND status = 'approved'`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, professionalID)
	if err != nil {
		return nil, fmt.Errorf("reviews: list reviews: %w", err)
	}
	defer rows.Close()

	var out []*Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// Moderate sets the moderation status and recomputes the professional's
// aggregate inside one transaction.
func (r *PostgresRepository) Moderate(ctx context.Context, id string, status Status) (*Review, error) {
	if status != StatusApproved && status != StatusRejected {
		return nil, ErrInvalidModeration
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("reviews: begin moderation: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE reviews SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+reviewColumns, id, status)
	rv, err := scanReview(row)
	if err != nil {
		return nil, err
	}

	if err := recomputeRating(ctx, tx, rv.ProfessionalID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("reviews: commit moderation: %w", err)
	}
	return rv, nil
}

// Delete removes a review and recomputes the aggregate in one
// transaction.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (*Review, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("reviews: begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING `+reviewColumns, id)
	rv, err := scanReview(row)
	if err != nil {
		return nil, err
	}

	if err := recomputeRating(ctx, tx, rv.ProfessionalID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("reviews: commit delete: %w", err)
	}
	return rv, nil
}

// Respond records the professional's one-time response. The response
// guard lives in the WHERE clause so two concurrent responses cannot
// both land.
func (r *PostgresRepository) Respond(ctx context.Context, id, professionalID, response string) (*Review, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE reviews
		SET response = $3, responded_at = now(), updated_at = now()
		WHERE id = $1 AND professional_id = $2 AND response = ''
		RETURNING `+reviewColumns, id, professionalID, response)
	rv, err := scanReview(row)
	if err == nil {
		return rv, nil
	}
	if !errors.Is(err, ErrReviewNotFound) {
		return nil, err
	}

	// Distinguish why the guarded UPDATE matched nothing.
	existing, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if existing.ProfessionalID != professionalID {
		return nil, ErrNotReviewOwner
	}
	return nil, ErrAlreadyResponded
}

// recomputeRating rewrites the professional's aggregate from approved
// reviews only.
func recomputeRating(ctx context.Context, tx pgx.Tx, professionalID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE professionals p
		SET rating = agg.rating, review_count = agg.review_count, updated_at = now()
		FROM (
			SELECT COALESCE(AVG(rating), 0) AS rating, COUNT(*) AS review_count
			FROM reviews
			WHERE professional_id = $1 AND status = 'approved'
		) agg
		WHERE p.id = $1
	`, professionalID)
	if err != nil {
		return fmt.Errorf("reviews: recompute rating: %w", err)
	}
	return nil
}

func scanReview(row pgx.Row) (*Review, error) {
	var rv Review
	err := row.Scan(
		&rv.ID, &rv.AppointmentID, &rv.PatientID, &rv.ProfessionalID,
		&rv.Rating, &rv.Comment, &rv.Status, &rv.Response, &rv.RespondedAt,
		&rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("reviews: scan review: %w", err)
	}
	return &rv, nil
}
