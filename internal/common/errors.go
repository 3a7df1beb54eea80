// Package common defines shared constants and sentinel errors used across
// the bookstore auth components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Authentication failure causes. They are always wrapped together with
	// ErrorUnauthorized and are meant for logs and metrics only.
	ErrCredentialNotFound = errors.New("credential not found")
	ErrWrongPassword      = errors.New("wrong password")

	// Token errors.
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidLifetime = errors.New("token lifetime must be positive")

	// Rate limiting errors.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrInvalidRate       = errors.New("invalid rate limit")

	// Startup errors.
	ErrConfiguration = errors.New("configuration error")
)

// AuthFailureReason returns a short, stable label describing why an
// authentication attempt failed. It returns "" for errors that are not
// authentication failures.
func AuthFailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrInvalidToken):
		return "token_invalid"
	case errors.Is(err, ErrWrongPassword):
		return "wrong_password"
	case errors.Is(err, ErrCredentialNotFound):
		return "unknown_user"
	case errors.Is(err, ErrorUnauthorized):
		return "unauthorized"
	default:
		return ""
	}
}
