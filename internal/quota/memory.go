package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the in-process Limiter: a mutex-guarded map of per-key
// fixed windows. Suitable for tests and single-process deployments; the
// sqlite-backed limiter in internal/store covers everything else.
type MemoryLimiter struct {
	mu       sync.Mutex
	dailyMax int
	windows  map[string]*window
	clock    func() time.Time // injectable for day-boundary tests
}

type window struct {
	start time.Time
	count int
}

// NewMemoryLimiter builds a limiter allowing dailyMax units per key per
// calendar day.
func NewMemoryLimiter(dailyMax int) *MemoryLimiter {
	return &MemoryLimiter{
		dailyMax: dailyMax,
		windows:  make(map[string]*window),
		clock:    time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (l *MemoryLimiter) WithClock(clock func() time.Time) *MemoryLimiter {
	l.clock = clock
	return l
}

// CheckDailyLimit reports remaining quota for the key's calendar day in tz
// without consuming.
func (l *MemoryLimiter) CheckDailyLimit(_ context.Context, key string, now time.Time, tz *time.Location) (bool, error) {
	dayStart := DayWindowStart(now, tz)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.start.Before(dayStart) {
		return l.dailyMax > 0, nil
	}
	return w.count < l.dailyMax, nil
}

// CheckAndConsume atomically takes one unit if the key's current window
// holds fewer than max. The window resets once period has elapsed since it
// opened.
func (l *MemoryLimiter) CheckAndConsume(_ context.Context, key string, max int, period time.Duration) (bool, error) {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= period {
		w = &window{start: now}
		l.windows[key] = w
	}
	if w.count >= max {
		return false, nil
	}
	w.count++
	return true, nil
}
