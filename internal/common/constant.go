package common

// DefaultTokenLifetimeSeconds is used when a caller does not ask for a
// specific token lifetime.
const DefaultTokenLifetimeSeconds = 600

// Credential field limits of a stored user.
const (
	UsernameMaxLen     = 120
	EmailMaxLen        = 50
	PasswordMinLen     = 8
	PasswordMaxLen     = 60
	PasswordHashMaxLen = 60
)

// RequestIDHeaderName carries the per-request correlation id.
const RequestIDHeaderName = "X-Request-ID"
