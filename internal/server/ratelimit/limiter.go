package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is the time left until the current window closes.
	RetryAfter time.Duration
}

// Limiter counts requests per key in fixed windows. A request is admitted,
// and counted, only while the window's count is below rate.Limit; rejected
// requests leave the window untouched.
type Limiter interface {
	Allow(ctx context.Context, key string, rate Rate) (Decision, error)
}
