package services

import (
	"context"
	"errors"
	"strings"

	ballot_errors "ballot-engine/pkg/errors"
	"ballot-engine/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleVoter = "voter"
	RoleAdmin = "admin"
)

// AuthService verifies access tokens minted by the identity provider.
// Issuing credentials is not this service's job.
type AuthService struct {
	jwtSecret []byte
	issuer    string
}

func NewAuthService(jwtSecret, issuer string) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret), issuer: issuer}
}

type AccessClaims struct {
	ParticipantID string `json:"sub"`
	Role          string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, ballot_errors.ErrUnauthorized
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ballot_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	}, opts...)
	if err != nil {
		return AccessClaims{}, ballot_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, ballot_errors.ErrUnauthorized
	}
	if _, err := uuid.Parse(strings.TrimSpace(claims.ParticipantID)); err != nil {
		return AccessClaims{}, ballot_errors.ErrUnauthorized
	}
	if claims.Role == "" {
		claims.Role = RoleVoter
	}
	return *claims, nil
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ballot_errors.ErrInvalidInput),
		errors.Is(err, ballot_errors.ErrInvalidSelection),
		errors.Is(err, ballot_errors.ErrInvalidDates),
		errors.Is(err, ballot_errors.ErrInvalidStatus):
		return 400
	case errors.Is(err, ballot_errors.ErrUnauthorized):
		return 401
	case errors.Is(err, ballot_errors.ErrNotFound):
		return 404
	case errors.Is(err, ballot_errors.ErrAlreadyVoted),
		errors.Is(err, ballot_errors.ErrAlreadyExists),
		errors.Is(err, ballot_errors.ErrConflict),
		errors.Is(err, ballot_errors.ErrPollNotOpen),
		errors.Is(err, ballot_errors.ErrInvalidTransition),
		errors.Is(err, ballot_errors.ErrImmutableField),
		errors.Is(err, ballot_errors.ErrNotDraft):
		return 409
	case errors.Is(err, ballot_errors.ErrInvalidChoice):
		return 422
	case errors.Is(err, ballot_errors.ErrRateLimited):
		return 429
	case errors.Is(err, ballot_errors.ErrServiceUnavailable):
		return 503
	default:
		return 500
	}
}

// ErrorCode is the stable machine-readable code sent alongside an error.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ballot_errors.ErrPollNotOpen):
		return "POLL_NOT_OPEN"
	case errors.Is(err, ballot_errors.ErrInvalidSelection):
		return "INVALID_SELECTION"
	case errors.Is(err, ballot_errors.ErrInvalidChoice):
		return "INVALID_CHOICE"
	case errors.Is(err, ballot_errors.ErrAlreadyVoted):
		return "ALREADY_VOTED"
	case errors.Is(err, ballot_errors.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ballot_errors.ErrImmutableField):
		return "IMMUTABLE_FIELD"
	case errors.Is(err, ballot_errors.ErrNotDraft):
		return "NOT_DRAFT"
	case errors.Is(err, ballot_errors.ErrInvalidDates), errors.Is(err, ballot_errors.ErrInvalidStatus), errors.Is(err, ballot_errors.ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ballot_errors.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ballot_errors.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ballot_errors.ErrAlreadyExists), errors.Is(err, ballot_errors.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ballot_errors.ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ballot_errors.ErrServiceUnavailable):
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

type ctxKey string

var participantIDKey ctxKey = "participant_id"
var roleKey ctxKey = "role"

func WithParticipantContext(ctx context.Context, participantID uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, participantIDKey, participantID)
	ctx = context.WithValue(ctx, roleKey, role)
	// logger fields
	ctx = context.WithValue(ctx, logger.ParticipantIdKey, participantID.String())
	return ctx
}

func ParticipantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(participantIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	participantID, ok := value.(uuid.UUID)
	return participantID, ok
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}
