package reviews

import "errors"

var (
	// ErrReviewNotFound is returned when the review does not exist.
	ErrReviewNotFound = errors.New("review not found")
	// ErrAlreadyReviewed is returned when the appointment already has a review.
	ErrAlreadyReviewed = errors.New("appointment already reviewed")
	// ErrInvalidRating is returned for ratings outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrNotEligible is returned when the appointment is not completed or
	// not owned by the caller.
	ErrNotEligible = errors.New("appointment not eligible for review")
	// ErrNotReviewOwner is returned when a professional responds to a
	// review that is not about them.
	ErrNotReviewOwner = errors.New("review does not belong to caller")
	// ErrAlreadyResponded is returned when the professional already
	// responded once.
	ErrAlreadyResponded = errors.New("review already has a response")
	// ErrInvalidModeration is returned for moderation verbs outside
	// approve/reject.
	ErrInvalidModeration = errors.New("moderation status must be approved or rejected")
)
