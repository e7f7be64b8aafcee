// Package users is the read-side directory used to resolve notification
// recipients. Account creation and authentication live in the identity
// provider, not here.
package users

import (
	"context"
	"errors"
	"sync"
)

// User is a platform account (patient, professional or admin).
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ErrUserNotFound is returned when a user is not found
var ErrUserNotFound = errors.New("user not found")

// Directory resolves users by ID.
type Directory interface {
	GetByID(ctx context.Context, id string) (*User, error)
}

// InMemoryDirectory is a Directory backed by a map, used in tests.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewInMemoryDirectory creates an empty in-memory directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{users: make(map[string]*User)}
}

// Put stores a user.
func (d *InMemoryDirectory) Put(u *User) {
	d.mu.Lock()
	d.users[u.ID] = u
	d.mu.Unlock()
}

// GetByID retrieves a user by ID.
func (d *InMemoryDirectory) GetByID(ctx context.Context, id string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}
