package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Notification is an in-app notification record.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification types written by the platform.
const (
	TypeBooking          = "appointment_booked"
	TypePaymentApproved  = "payment_approved"
	TypePaymentRejected  = "payment_rejected"
	TypeCancellation     = "appointment_cancelled"
	TypeReschedule       = "appointment_rescheduled"
	TypeSessionReminder  = "session_reminder"
	TypeReviewModeration = "review_moderation"
)

// ErrNotificationNotFound is returned when a notification is not found
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// InMemoryNotificationStore is a NotificationStore backed by a map.
type InMemoryNotificationStore struct {
	mu            sync.RWMutex
	notifications map[string]*Notification
}

// NewInMemoryNotificationStore creates an empty in-memory store.
func NewInMemoryNotificationStore() *InMemoryNotificationStore {
	return &InMemoryNotificationStore{notifications: make(map[string]*Notification)}
}

// Create stores a notification.
func (s *InMemoryNotificationStore) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	cp := *n
	s.notifications[n.ID] = &cp
	s.mu.Unlock()
	return nil
}

// ListByUser returns a user's notifications, newest first is not guaranteed
// for the in-memory store.
func (s *InMemoryNotificationStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// MarkRead flags a notification as read.
func (s *InMemoryNotificationStore) MarkRead(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotificationNotFound
	}
	n.Read = true
	return nil
}

// notifyDB is the pgx surface the postgres store needs.
type notifyDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresNotificationStore stores notifications in the relational database.
type PostgresNotificationStore struct {
	db notifyDB
}

// NewPostgresNotificationStore initializes a store backed by pgx.
func NewPostgresNotificationStore(db notifyDB) *PostgresNotificationStore {
	if db == nil {
		panic("notify: pgx pool required")
	}
	return &PostgresNotificationStore{db: db}
}

// Create inserts a notification row.
func (s *PostgresNotificationStore) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	query := `
		INSERT INTO notifications (id, user_id, type, title, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	if err := s.db.QueryRow(ctx, query, n.ID, n.UserID, n.Type, n.Title, n.Body).
		Scan(&n.CreatedAt); err != nil {
		return fmt.Errorf("notify: insert notification: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications, newest first.
func (s *PostgresNotificationStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, type, title, body, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: list notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkRead flags a notification as read, scoped to its owner.
func (s *PostgresNotificationStore) MarkRead(ctx context.Context, userID, id string) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("notify: mark read: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
