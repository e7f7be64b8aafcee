package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Row is the minimal pgx query surface the directory needs.
type Row interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory resolves users from the relational database.
type PostgresDirectory struct {
	db Row
}

// NewPostgresDirectory initializes a directory backed by pgx.
func NewPostgresDirectory(db Row) *PostgresDirectory {
	if db == nil {
		panic("users: pgx pool required")
	}
	return &PostgresDirectory{db: db}
}

// GetByID fetches a user by ID.
func (d *PostgresDirectory) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, name, email, role FROM users WHERE id = $1`
	var u User
	if err := d.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("users: select failed: %w", err)
	}
	return &u, nil
}
