package quota

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCheckAndConsumeEnforcesMax(t *testing.T) {
	l := NewMemoryLimiter(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.CheckAndConsume(ctx, "generate_verse:u1", 3, 24*time.Hour)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i)
	}
	ok, err := l.CheckAndConsume(ctx, "generate_verse:u1", 3, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different key has its own window.
	ok, err = l.CheckAndConsume(ctx, "generate_verse:u2", 3, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWindowResetsAfterPeriod(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(1).WithClock(func() time.Time { return now })
	ctx := context.Background()

	ok, _ := l.CheckAndConsume(ctx, "k", 1, time.Hour)
	assert.True(t, ok)
	ok, _ = l.CheckAndConsume(ctx, "k", 1, time.Hour)
	assert.False(t, ok)

	now = now.Add(time.Hour)
	ok, _ = l.CheckAndConsume(ctx, "k", 1, time.Hour)
	assert.True(t, ok)
}

func TestCheckDailyLimitDoesNotConsume(t *testing.T) {
	l := NewMemoryLimiter(1)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ok, err := l.CheckDailyLimit(ctx, "k", now, time.UTC)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestCheckDailyLimitSeesConsumption(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, seoul)
	l := NewMemoryLimiter(1).WithClock(func() time.Time { return now })
	ctx := context.Background()

	ok, _ := l.CheckAndConsume(ctx, "k", 1, 24*time.Hour)
	require.True(t, ok)

	ok, err = l.CheckDailyLimit(ctx, "k", now, seoul)
	require.NoError(t, err)
	assert.False(t, ok)

	// The next calendar day in the caller's timezone has fresh quota.
	nextDay := time.Date(2025, 6, 2, 0, 30, 0, 0, seoul)
	ok, err = l.CheckDailyLimit(ctx, "k", nextDay, seoul)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckAndConsumeIsAtomicPerKey(t *testing.T) {
	l := NewMemoryLimiter(10)
	ctx := context.Background()

	const goroutines = 50
	var granted atomic.Int32
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			ok, err := l.CheckAndConsume(ctx, "shared", 10, 24*time.Hour)
			assert.NoError(t, err)
			if ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), granted.Load())
}

func TestDayWindowStart(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	// 20:00 UTC on May 31 is already June 1 in Seoul.
	now := time.Date(2025, 5, 31, 20, 0, 0, 0, time.UTC)
	start := DayWindowStart(now, seoul)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, seoul), start)

	assert.Equal(t,
		time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC),
		DayWindowStart(now, nil))
}
