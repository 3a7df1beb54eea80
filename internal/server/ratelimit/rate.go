// Package ratelimit implements fixed-window request quotas keyed by caller
// identity or network origin.
package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookstore/internal/common"
)

// Rate is a quota of Limit requests per Window.
type Rate struct {
	Limit  int
	Window time.Duration
}

var units = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseRate parses quotas written as "N per unit", "N/unit" or
// "N per M units", e.g. "20 per minute", "1/second", "100 per 5 minutes".
func ParseRate(s string) (Rate, error) {
	fields := strings.Fields(strings.ToLower(strings.ReplaceAll(s, "/", " per ")))
	if len(fields) < 3 || len(fields) > 4 || fields[1] != "per" {
		return Rate{}, fmt.Errorf("%w: %q", common.ErrInvalidRate, s)
	}

	limit, err := strconv.Atoi(fields[0])
	if err != nil || limit <= 0 {
		return Rate{}, fmt.Errorf("%w: bad count in %q", common.ErrInvalidRate, s)
	}

	multiplier := 1
	unitName := fields[2]
	if len(fields) == 4 {
		multiplier, err = strconv.Atoi(fields[2])
		if err != nil || multiplier <= 0 {
			return Rate{}, fmt.Errorf("%w: bad multiplier in %q", common.ErrInvalidRate, s)
		}
		unitName = fields[3]
	}

	unit, ok := units[strings.TrimSuffix(unitName, "s")]
	if !ok {
		return Rate{}, fmt.Errorf("%w: unknown unit in %q", common.ErrInvalidRate, s)
	}

	return Rate{Limit: limit, Window: time.Duration(multiplier) * unit}, nil
}

// MustParseRate is ParseRate for constants known to be valid.
func MustParseRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rate) String() string {
	for _, name := range []string{"day", "hour", "minute", "second"} {
		unit := units[name]
		if r.Window == unit {
			return fmt.Sprintf("%d per %s", r.Limit, name)
		}
		if r.Window%unit == 0 {
			return fmt.Sprintf("%d per %d %ss", r.Limit, r.Window/unit, name)
		}
	}
	return fmt.Sprintf("%d per %s", r.Limit, r.Window)
}
