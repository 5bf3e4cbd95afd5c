// Package quota provides the per-key rate limiting the generation pipeline
// checks before doing any network work. Quota state is shared mutable data:
// the check-and-consume path is atomic per key, whatever the backing store.
package quota

import (
	"context"
	"time"
)

// Limiter is the rate-limiting contract. Keys are scoped strings like
// "generate_verse:<userID>".
type Limiter interface {
	// CheckDailyLimit reports whether the key has quota left for the
	// calendar day containing now in tz. It does not consume anything.
	CheckDailyLimit(ctx context.Context, key string, now time.Time, tz *time.Location) (bool, error)

	// CheckAndConsume atomically takes one unit of quota for the key if
	// fewer than max units were consumed in the current period window.
	// It reports whether a unit was taken.
	CheckAndConsume(ctx context.Context, key string, max int, period time.Duration) (bool, error)
}

// DayWindowStart returns the start of the calendar day containing now in tz.
// Shared by the limiter implementations so the day boundary is computed in
// exactly one place.
func DayWindowStart(now time.Time, tz *time.Location) time.Time {
	if tz == nil {
		tz = time.UTC
	}
	local := now.In(tz)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tz)
}
