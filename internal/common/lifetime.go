package common

import (
	"fmt"
	"math"
	"time"
)

// MaxLifetimeSeconds is the largest whole-second lifetime a time.Duration
// can hold.
const MaxLifetimeSeconds = math.MaxInt64 / int64(time.Second)

// LifetimeFromSeconds converts a caller supplied number of seconds into a
// token lifetime. Values outside 1..MaxLifetimeSeconds yield
// ErrInvalidLifetime instead of wrapping around.
func LifetimeFromSeconds(secs int64) (time.Duration, error) {
	if secs <= 0 || secs > MaxLifetimeSeconds {
		return 0, fmt.Errorf("%w: %d seconds", ErrInvalidLifetime, secs)
	}
	return time.Duration(secs) * time.Second, nil
}
