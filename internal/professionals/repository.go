package professionals

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository persists professional profiles.
type Repository interface {
	Create(ctx context.Context, p *Professional) error
	GetByID(ctx context.Context, id string) (*Professional, error)
	GetByUserID(ctx context.Context, userID string) (*Professional, error)
	// Search returns approved professionals matching the filter.
	Search(ctx context.Context, filter SearchFilter) ([]*Professional, error)
	// UpdateStatus atomically transitions the status and reports the
	// status that was replaced, so audit entries reflect the actual
	// pre-update state even under concurrent writes.
	UpdateStatus(ctx context.Context, id string, next Status) (previous Status, updated *Professional, err error)
	// UpdateRating overwrites the aggregate rating and review count.
	UpdateRating(ctx context.Context, id string, rating float64, reviewCount int) error
}

// InMemoryRepository is a Repository backed by a map, used in tests.
type InMemoryRepository struct {
	mu            sync.RWMutex
	professionals map[string]*Professional
	byUser        map[string]string
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		professionals: make(map[string]*Professional),
		byUser:        make(map[string]string),
	}
}

func cloneProfessional(p *Professional) *Professional {
	cp := *p
	if p.Availability != nil {
		cp.Availability = make(Availability, len(p.Availability))
		for day, ranges := range p.Availability {
			cp.Availability[day] = append([]TimeRange(nil), ranges...)
		}
	}
	return &cp
}

// Create stores a new profile.
func (r *InMemoryRepository) Create(ctx context.Context, p *Professional) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byUser[p.UserID]; exists {
		return ErrAlreadyRegistered
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = StatusPending
	}
	r.professionals[p.ID] = cloneProfessional(p)
	r.byUser[p.UserID] = p.ID
	return nil
}

// GetByID returns a profile by id.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Professional, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.professionals[id]
	if !ok {
		return nil, ErrProfessionalNotFound
	}
	return cloneProfessional(p), nil
}

// GetByUserID returns the profile owned by a user.
func (r *InMemoryRepository) GetByUserID(ctx context.Context, userID string) (*Professional, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[userID]
	if !ok {
		return nil, ErrProfessionalNotFound
	}
	return cloneProfessional(r.professionals[id]), nil
}

// Search returns approved profiles matching the filter, best rated first.
func (r *InMemoryRepository) Search(ctx context.Context, filter SearchFilter) ([]*Professional, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Professional
	for _, p := range r.professionals {
		if p.Status != StatusApproved {
			continue
		}
		if filter.Specialty != "" && !strings.EqualFold(p.Specialty, filter.Specialty) {
			continue
		}
		if filter.MaxPriceCents > 0 && p.PriceCents > filter.MaxPriceCents {
			continue
		}
		if filter.MinRating > 0 && p.Rating < filter.MinRating {
			continue
		}
		out = append(out, cloneProfessional(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateStatus transitions a profile's status.
func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, next Status) (Status, *Professional, error) {
	if !ValidStatuses[next] {
		return "", nil, ErrInvalidStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.professionals[id]
	if !ok {
		return "", nil, ErrProfessionalNotFound
	}
	previous := p.Status
	p.Status = next
	p.UpdatedAt = time.Now().UTC()
	return previous, cloneProfessional(p), nil
}

// UpdateRating overwrites the aggregate rating fields.
func (r *InMemoryRepository) UpdateRating(ctx context.Context, id string, rating float64, reviewCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.professionals[id]
	if !ok {
		return ErrProfessionalNotFound
	}
	p.Rating = rating
	p.ReviewCount = reviewCount
	p.UpdatedAt = time.Now().UTC()
	return nil
}
