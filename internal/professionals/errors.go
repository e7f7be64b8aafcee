package professionals

import "errors"

var (
	// ErrProfessionalNotFound is returned when the profile does not exist.
	ErrProfessionalNotFound = errors.New("professional not found")
	// ErrInvalidStatus is returned for a status outside the allow-list.
	ErrInvalidStatus = errors.New("invalid professional status")
	// ErrAlreadyRegistered is returned when the user already has a profile.
	ErrAlreadyRegistered = errors.New("professional profile already exists for user")
	// ErrInvalidProfile is returned when a registration request fails validation.
	ErrInvalidProfile = errors.New("invalid professional profile")
)
