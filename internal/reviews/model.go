package reviews

import (
	"fmt"
	"strings"
	"time"
)

// Status is a review's moderation state. Only approved reviews feed the
// professional's aggregate rating.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Review is a patient's rating of a completed session. One review per
// appointment.
type Review struct {
	ID             string     `json:"id"`
	AppointmentID  string     `json:"appointment_id"`
	PatientID      string     `json:"patient_id"`
	ProfessionalID string     `json:"professional_id"`
	Rating         int        `json:"rating"`
	Comment        string     `json:"comment,omitempty"`
	Status         Status     `json:"status"`
	Response       string     `json:"response,omitempty"`
	RespondedAt    *time.Time `json:"responded_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateReviewRequest is the payload to submit a review.
type CreateReviewRequest struct {
	AppointmentID string `json:"appointment_id"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
}

// Validate checks the payload before touching storage.
func (r *CreateReviewRequest) Validate() error {
	if strings.TrimSpace(r.AppointmentID) == "" {
		return fmt.Errorf("reviews: appointment_id is required")
	}
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidRating
	}
	if len(r.Comment) > 2000 {
		return fmt.Errorf("reviews: comment must be at most 2000 characters")
	}
	return nil
}
