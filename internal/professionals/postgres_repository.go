package professionals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs. Satisfied by
// *pgxpool.Pool and by pgxmock pools in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores professional profiles in the relational
// database. Availability is stored as a JSONB column.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("professionals: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const professionalColumns = `
	id, user_id, name, specialty, bio, price_cents, currency,
	session_duration_minutes, buffer_time_minutes, availability,
	status, rating, review_count, created_at, updated_at`

// Create inserts a new profile row.
func (r *PostgresRepository) Create(ctx context.Context, p *Professional) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	availability, err := json.Marshal(p.Availability)
	if err != nil {
		return fmt.Errorf("professionals: marshal availability: %w", err)
	}
	query := `
		INSERT INTO professionals (
			id, user_id, name, specialty, bio, price_cents, currency,
			session_duration_minutes, buffer_time_minutes, availability, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		p.ID, p.UserID, p.Name, p.Specialty, p.Bio, p.PriceCents, p.Currency,
		p.SessionDuration, p.BufferTime, availability, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("professionals: insert profile: %w", err)
	}
	return nil
}

// GetByID returns a profile by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Professional, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+professionalColumns+` FROM professionals WHERE id = $1`, id)
	return scanProfessional(row)
}

// GetByUserID returns the profile owned by a user.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*Professional, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+professionalColumns+` FROM professionals WHERE user_id = $1`, userID)
	return scanProfessional(row)
}

// Search returns approved profiles matching the filter, best rated first.
func (r *PostgresRepository) Search(ctx context.Context, filter SearchFilter) ([]*Professional, error) {
	var (
		conditions = []string{"status = 'approved'"}
		args       []any
	)
	if filter.Specialty != "" {
		args = append(args, filter.Specialty)
		conditions = append(conditions, fmt.Sprintf("LOWER(specialty) = LOWER($%d)", len(args)))
	}
	if filter.MaxPriceCents > 0 {
		args = append(args, filter.MaxPriceCents)
		conditions = append(conditions, fmt.Sprintf("price_cents <= $%d", len(args)))
	}
	if filter.MinRating > 0 {
		args = append(args, filter.MinRating)
		conditions = append(conditions, fmt.Sprintf("rating >= $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT %s FROM professionals WHERE %s ORDER BY rating DESC, review_count DESC LIMIT $%d`,
		professionalColumns, strings.Join(conditions, " AND "), len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("professionals: search: %w", err)
	}
	defer rows.Close()

	var out []*Professional
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a profile's status and returns the replaced
// status. The self-join with FOR UPDATE makes the previous status the
// actual pre-update value even under concurrent transitions.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, next Status) (Status, *Professional, error) {
	if !ValidStatuses[next] {
		return "", nil, ErrInvalidStatus
	}
	query := `
		UPDATE professionals p
		SET status = $2, updated_at = now()
		FROM (SELECT id, status FROM professionals WHERE id = $1 FOR UPDATE) old
		WHERE p.id = old.id
		RETURNING old.status, ` + prefixColumns("p")
	row := r.db.QueryRow(ctx, query, id, next)

	var previous Status
	p, err := scanProfessionalWith(row, &previous)
	if err != nil {
		return "", nil, err
	}
	return previous, p, nil
}

// UpdateRating overwrites the aggregate rating fields.
func (r *PostgresRepository) UpdateRating(ctx context.Context, id string, rating float64, reviewCount int) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE professionals SET rating = $2, review_count = $3, updated_at = now() WHERE id = $1`,
		id, rating, reviewCount)
	if err != nil {
		return fmt.Errorf("professionals: update rating: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrProfessionalNotFound
	}
	return nil
}

func prefixColumns(alias string) string {
	cols := strings.Split(professionalColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func scanProfessional(row pgx.Row) (*Professional, error) {
	return scanProfessionalWith(row)
}

// scanProfessionalWith scans a profile row, optionally preceded by extra
// leading columns.
func scanProfessionalWith(row pgx.Row, extra ...any) (*Professional, error) {
	var (
		p            Professional
		availability []byte
	)
	dest := append(extra,
		&p.ID, &p.UserID, &p.Name, &p.Specialty, &p.Bio, &p.PriceCents, &p.Currency,
		&p.SessionDuration, &p.BufferTime, &availability,
		&p.Status, &p.Rating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, fmt.Errorf("professionals: scan profile: %w", err)
	}
	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &p.Availability); err != nil {
			return nil, fmt.Errorf("professionals: decode availability: %w", err)
		}
	}
	return &p, nil
}
