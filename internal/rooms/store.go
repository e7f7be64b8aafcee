// Package rooms provides video session rooms for confirmed
// appointments: short-lived join tokens in redis and a websocket
// presence hub for the two participants.
package rooms

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartwell-la/smartwell-platform/internal/appointments"
)

var (
	// ErrInvalidToken is returned for unknown or expired join tokens.
	ErrInvalidToken = errors.New("invalid or expired room token")
	// ErrSessionOver is returned when the session has already ended.
	ErrSessionOver = errors.New("session already ended")
	// ErrNotParticipant is returned when the caller is not in the session.
	ErrNotParticipant = errors.New("caller is not a session participant")
	// ErrNotJoinable is returned for appointments that are not confirmed.
	ErrNotJoinable = errors.New("appointment is not joinable")
)

// JoinClaim identifies who a token admits and to which room.
type JoinClaim struct {
	AppointmentID string `json:"appointment_id"`
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
}

// TokenStore issues and validates room join tokens backed by redis.
// Tokens expire with the session so a stale link never opens a room.
type TokenStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	maxTTL time.Duration
	now    func() time.Time
}

// NewTokenStore creates a token store. maxTTL caps token lifetime for
// sessions far in the future.
func NewTokenStore(rdb *redis.Client, maxTTL time.Duration) *TokenStore {
	if rdb == nil {
		panic("rooms: redis client cannot be nil")
	}
	if maxTTL <= 0 {
		maxTTL = 2 * time.Hour
	}
	return &TokenStore{
		redis:  rdb,
		tracer: otel.Tracer("smartwell.internal.rooms"),
		maxTTL: maxTTL,
		now:    time.Now,
	}
}

// WithClock overrides the time source, used in tests.
func (s *TokenStore) WithClock(now func() time.Time) *TokenStore {
	s.now = now
	return s
}

// CreateJoinToken issues a token admitting userID to the appointment's
// room. The appointment must be confirmed, the caller must be one of
// the two participants, and the session must not have ended yet.
func (s *TokenStore) CreateJoinToken(ctx context.Context, a *appointments.Appointment, userID string) (token string, expiresAt time.Time, err error) {
	ctx, span := s.tracer.Start(ctx, "rooms.create_join_token")
	defer span.End()

	if a.Status != appointments.StatusConfirmed {
		return "", time.Time{}, ErrNotJoinable
	}

	var role string
	switch userID {
	case a.PatientID:
		role = "patient"
	case a.ProfessionalID:
		role = "professional"
	default:
		return "", time.Time{}, ErrNotParticipant
	}

	start, err := a.SessionStart()
	if err != nil {
		span.RecordError(err)
		return "", time.Time{}, fmt.Errorf("rooms: session start: %w", err)
	}
	end := start.Add(time.Duration(a.DurationMinutes) * time.Minute)

	now := s.now().UTC()
	ttl := end.Sub(now)
	if ttl <= 0 {
		return "", time.Time{}, ErrSessionOver
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}

	token, err = newToken()
	if err != nil {
		return "", time.Time{}, err
	}
	claim := JoinClaim{AppointmentID: a.ID, UserID: userID, Role: role}
	data, err := json.Marshal(claim)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("rooms: marshal claim: %w", err)
	}

	if err := s.redis.Set(ctx, tokenKey(token), data, ttl).Err(); err != nil {
		span.RecordError(err)
		return "", time.Time{}, fmt.Errorf("rooms: persist token: %w", err)
	}
	return token, now.Add(ttl), nil
}

// ValidateToken resolves a token into its claim. Expired and unknown
// tokens are indistinguishable.
func (s *TokenStore) ValidateToken(ctx context.Context, token string) (*JoinClaim, error) {
	ctx, span := s.tracer.Start(ctx, "rooms.validate_token")
	defer span.End()

	data, err := s.redis.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidToken
		}
		span.RecordError(err)
		return nil, fmt.Errorf("rooms: load token: %w", err)
	}

	var claim JoinClaim
	if err := json.Unmarshal(data, &claim); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rooms: decode claim: %w", err)
	}
	return &claim, nil
}

// RevokeToken removes a token, used when a session is cancelled.
func (s *TokenStore) RevokeToken(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, tokenKey(token)).Err(); err != nil {
		return fmt.Errorf("rooms: revoke token: %w", err)
	}
	return nil
}

func tokenKey(token string) string {
	return fmt.Sprintf("room_token:%s", token)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("rooms: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
