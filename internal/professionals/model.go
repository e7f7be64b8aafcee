package professionals

import (
	"fmt"
	"strings"
	"time"
)

// Status is a professional's onboarding state. Only approved
// professionals appear in search results.
type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
)

// ValidStatuses is the allow-list accepted by the admin transition
// endpoint. Anything else is a validation error.
var ValidStatuses = map[Status]bool{
	StatusPending:     true,
	StatusUnderReview: true,
	StatusApproved:    true,
	StatusRejected:    true,
}

// TimeRange is one availability interval within a day, times in "15:04".
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Validate checks the interval is well formed.
func (r TimeRange) Validate() error {
	start, err := time.Parse("15:04", r.Start)
	if err != nil {
		return fmt.Errorf("professionals: invalid start time %q", r.Start)
	}
	end, err := time.Parse("15:04", r.End)
	if err != nil {
		return fmt.Errorf("professionals: invalid end time %q", r.End)
	}
	if !end.After(start) {
		return fmt.Errorf("professionals: interval end %q must be after start %q", r.End, r.Start)
	}
	return nil
}

// Availability maps weekday (time.Weekday ordinal as string key in JSON)
// to the intervals the professional accepts sessions in.
type Availability map[time.Weekday][]TimeRange

// Professional is a wellness provider profile.
type Professional struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	Name            string       `json:"name"`
	Specialty       string       `json:"specialty"`
	Bio             string       `json:"bio,omitempty"`
	PriceCents      int64        `json:"price_cents"`
	Currency        string       `json:"currency"`
	SessionDuration int          `json:"session_duration_minutes"`
	BufferTime      int          `json:"buffer_time_minutes"`
	Availability    Availability `json:"availability"`
	Status          Status       `json:"status"`
	Rating          float64      `json:"rating"`
	ReviewCount     int          `json:"review_count"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// RegisterRequest is the payload to create a professional profile.
// New profiles always start as pending.
type RegisterRequest struct {
	UserID          string       `json:"user_id"`
	Name            string       `json:"name"`
	Specialty       string       `json:"specialty"`
	Bio             string       `json:"bio"`
	PriceCents      int64        `json:"price_cents"`
	Currency        string       `json:"currency"`
	SessionDuration int          `json:"session_duration_minutes"`
	BufferTime      int          `json:"buffer_time_minutes"`
	Availability    Availability `json:"availability"`
}

// Validate checks required fields and availability intervals.
func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidProfile)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if strings.TrimSpace(r.Specialty) == "" {
		return fmt.Errorf("%w: specialty is required", ErrInvalidProfile)
	}
	if r.PriceCents <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidProfile)
	}
	if r.SessionDuration < 15 || r.SessionDuration > 240 {
		return fmt.Errorf("%w: session duration must be between 15 and 240 minutes", ErrInvalidProfile)
	}
	if r.BufferTime < 0 || r.BufferTime > 120 {
		return fmt.Errorf("%w: buffer time must be between 0 and 120 minutes", ErrInvalidProfile)
	}
	for day, ranges := range r.Availability {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: invalid weekday %d", ErrInvalidProfile, day)
		}
		for _, tr := range ranges {
			if err := tr.Validate(); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
			}
		}
	}
	return nil
}

// SearchFilter narrows professional search. Search only ever returns
// approved profiles regardless of filter.
type SearchFilter struct {
	Specialty     string
	MaxPriceCents int64
	MinRating     float64
	Limit         int
}
