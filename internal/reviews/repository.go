package reviews

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RatingSink receives recomputed aggregate ratings. Satisfied by the
// professionals repository.
type RatingSink interface {
	UpdateRating(ctx context.Context, professionalID string, rating float64, reviewCount int) error
}

// Repository persists reviews. Moderation and deletion recompute the
// professional's aggregate rating from approved reviews in the same
// operation so the aggregate never drifts from the review set.
type Repository interface {
	Create(ctx context.Context, rv *Review) error
	GetByID(ctx context.Context, id string) (*Review, error)
	GetByAppointmentID(ctx context.Context, appointmentID string) (*Review, error)
	ListByProfessional(ctx context.Context, professionalID string, approvedOnly bool) ([]*Review, error)
	Moderate(ctx context.Context, id string, status Status) (*Review, error)
	Delete(ctx context.Context, id string) (*Review, error)
	Respond(ctx context.Context, id, professionalID, response string) (*Review, error)
}

// InMemoryRepository is a Repository backed by maps, used in tests.
type InMemoryRepository struct {
	mu            sync.RWMutex
	reviews       map[string]*Review
	byAppointment map[string]string
	ratings       RatingSink
}

// NewInMemoryRepository creates an empty in-memory repository. ratings
// may be nil when aggregate recomputation is not under test.
func NewInMemoryRepository(ratings RatingSink) *InMemoryRepository {
	return &InMemoryRepository{
		reviews:       make(map[string]*Review),
		byAppointment: make(map[string]string),
		ratings:       ratings,
	}
}

func cloneReview(rv *Review) *Review {
	cp := *rv
	return &cp
}

// Create stores a new pending review.
func (r *InMemoryRepository) Create(ctx context.Context, rv *Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byAppointment[rv.AppointmentID]; exists {
		return ErrAlreadyReviewed
	}
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	if rv.Status == "" {
		rv.Status = StatusPending
	}
	now := time.Now().UTC()
	rv.CreatedAt = now
	rv.UpdatedAt = now
	r.reviews[rv.ID] = cloneReview(rv)
	r.byAppointment[rv.AppointmentID] = rv.ID
	return nil
}

// GetByID returns a review by id.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rv, ok := r.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	return cloneReview(rv), nil
}

// GetByAppointmentID returns the review for an appointment.
func (r *InMemoryRepository) GetByAppointmentID(ctx context.Context, appointmentID string) (*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAppointment[appointmentID]
	if !ok {
		return nil, ErrReviewNotFound
	}
	return cloneReview(r.reviews[id]), nil
}

// ListByProfessional returns a professional's reviews, newest first.
func (r *InMemoryRepository) ListByProfessional(ctx context.Context, professionalID string, approvedOnly bool) ([]*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Review
	for _, rv := range r.reviews {
		if rv.ProfessionalID != professionalID {
			continue
		}
		if approvedOnly && rv.Status != StatusApproved {
			continue
		}
		out = append(out, cloneReview(rv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Moderate sets the moderation status and recomputes the aggregate.
func (r *InMemoryRepository) Moderate(ctx context.Context, id string, status Status) (*Review, error) {
	if status != StatusApproved && status != StatusRejected {
		return nil, ErrInvalidModeration
	}
	r.mu.Lock()
	rv, ok := r.reviews[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrReviewNotFound
	}
	rv.Status = status
	rv.UpdatedAt = time.Now().UTC()
	out := cloneReview(rv)
	professionalID := rv.ProfessionalID
	r.mu.Unlock()

	if err := r.recompute(ctx, professionalID); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a review and recomputes the aggregate.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) (*Review, error) {
	r.mu.Lock()
	rv, ok := r.reviews[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrReviewNotFound
	}
	delete(r.reviews, id)
	delete(r.byAppointment, rv.AppointmentID)
	out := cloneReview(rv)
	professionalID := rv.ProfessionalID
	r.mu.Unlock()

	if err := r.recompute(ctx, professionalID); err != nil {
		return nil, err
	}
	return out, nil
}

// Respond records the professional's one-time response.
func (r *InMemoryRepository) Respond(ctx context.Context, id, professionalID, response string) (*Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	if rv.ProfessionalID != professionalID {
		return nil, ErrNotReviewOwner
	}
	if rv.Response != "" {
		return nil, ErrAlreadyResponded
	}
	now := time.Now().UTC()
	rv.Response = response
	rv.RespondedAt = &now
	rv.UpdatedAt = now
	return cloneReview(rv), nil
}

func (r *InMemoryRepository) recompute(ctx context.Context, professionalID string) error {
	if r.ratings == nil {
		return nil
	}
	r.mu.RLock()
	var sum, count int
	for _, rv := range r.reviews {
		if rv.ProfessionalID == professionalID && rv.Status == StatusApproved {
			sum += rv.Rating
			count++
		}
	}
	r.mu.RUnlock()

	var rating float64
	if count > 0 {
		rating = float64(sum) / float64(count)
	}
	return r.ratings.UpdateRating(ctx, professionalID, rating, count)
}
