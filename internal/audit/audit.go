// Package audit provides the append-only record of admin actions.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action represents the type of admin action being recorded.
type Action string

const (
	// ActionProfessionalStatusChanged is logged when an admin transitions a professional's status.
	ActionProfessionalStatusChanged Action = "admin.professional_status_changed"
	// ActionAppointmentCancelled is logged when an admin force-cancels an appointment.
	ActionAppointmentCancelled Action = "admin.appointment_cancelled"
	// ActionReviewApproved is logged when a moderator approves a review.
	ActionReviewApproved Action = "admin.review_approved"
	// ActionReviewRejected is logged when a moderator rejects a review.
	ActionReviewRejected Action = "admin.review_rejected"
	// ActionReviewDeleted is logged when a moderator deletes a review.
	ActionReviewDeleted Action = "admin.review_deleted"
)

// Entry represents an immutable audit record. Entries are never mutated or
// deleted by the application.
type Entry struct {
	ID         string          `json:"id"`
	AdminUID   string          `json:"admin_uid"`
	AdminEmail string          `json:"admin_email"`
	Action     Action          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// StatusChangeDetails captures the before/after snapshot of a status
// transition.
type StatusChangeDetails struct {
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	Note           string `json:"note,omitempty"`
}

// Service handles audit logging.
type Service struct {
	db *sql.DB
}

// NewService creates a new audit service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// LogAction records an admin action.
func (s *Service) LogAction(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_logs (
			id, admin_uid, admin_email, action, target_type, target_id,
			details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.AdminUID,
		entry.AdminEmail,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Details,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log action: %w", err)
	}
	return nil
}

// LogStatusChange records a professional status transition with its
// before/after snapshot.
func (s *Service) LogStatusChange(ctx context.Context, adminUID, adminEmail, professionalID, previous, next, note string) error {
	details, _ := json.Marshal(StatusChangeDetails{
		PreviousStatus: previous,
		NewStatus:      next,
		Note:           note,
	})
	return s.LogAction(ctx, Entry{
		AdminUID:   adminUID,
		AdminEmail: adminEmail,
		Action:     ActionProfessionalStatusChanged,
		TargetType: "professional",
		TargetID:   professionalID,
		Details:    details,
	})
}

// LogAppointmentCancelled records an admin forced cancellation.
func (s *Service) LogAppointmentCancelled(ctx context.Context, adminUID, adminEmail, appointmentID, reason string) error {
	details, _ := json.Marshal(map[string]string{"reason": reason})
	return s.LogAction(ctx, Entry{
		AdminUID:   adminUID,
		AdminEmail: adminEmail,
		Action:     ActionAppointmentCancelled,
		TargetType: "appointment",
		TargetID:   appointmentID,
		Details:    details,
	})
}

// Filter specifies criteria for querying audit entries.
type Filter struct {
	AdminUID   string
	Action     Action
	TargetType string
	TargetID   string
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
	Offset     int
}

// Query retrieves audit entries with filters, newest first.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, admin_uid, admin_email, action, target_type, target_id,
			   details, created_at
		FROM audit_logs
		WHERE 1=1
	`
	var args []interface{}
	argIdx := 1

	if filter.AdminUID != "" {
		query += fmt.Sprintf(" AND admin_uid = $%d", argIdx)
		args = append(args, filter.AdminUID)
		argIdx++
	}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, filter.Action)
		argIdx++
	}
	if filter.TargetType != "" {
		query += fmt.Sprintf(" AND target_type = $%d", argIdx)
		args = append(args, filter.TargetType)
		argIdx++
	}
	if filter.TargetID != "" {
		query += fmt.Sprintf(" AND target_id = $%d", argIdx)
		args = append(args, filter.TargetID)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var email sql.NullString
		if err := rows.Scan(
			&e.ID, &e.AdminUID, &email, &e.Action, &e.TargetType,
			&e.TargetID, &e.Details, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("audit: failed to scan entry: %w", err)
		}
		e.AdminEmail = email.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
