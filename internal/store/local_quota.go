package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quiettime/internal/quota"
)

var _ quota.Limiter = (*LocalStore)(nil)

// dailyMaxDefault mirrors the orchestrator default so a limiter opened
// without configuration still enforces something sane.
const dailyMaxDefault = 3

// CheckDailyLimit reports whether the key has quota left for the calendar
// day containing now in tz. Nothing is consumed.
func (s *LocalStore) CheckDailyLimit(ctx context.Context, key string, now time.Time, tz *time.Location) (bool, error) {
	dayStart := quota.DayWindowStart(now, tz)

	var startRaw string
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT window_start, count FROM quota_windows WHERE key = ?`,
		key).Scan(&startRaw, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return s.dailyMax > 0, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check quota: %w", err)
	}

	start, err := decodeTime(startRaw)
	if err != nil {
		return false, fmt.Errorf("failed to decode quota window: %w", err)
	}
	if start.Before(dayStart) {
		return s.dailyMax > 0, nil
	}
	return count < s.dailyMax, nil
}

// CheckAndConsume atomically takes one unit for the key if fewer than max
// were taken in the current window. The whole read-modify-write runs in one
// transaction so concurrent callers cannot both take the last unit.
func (s *LocalStore) CheckAndConsume(ctx context.Context, key string, max int, period time.Duration) (bool, error) {
	now := s.clock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin quota tx: %w", err)
	}
	defer tx.Rollback()

	var startRaw string
	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT window_start, count FROM quota_windows WHERE key = ?`,
		key).Scan(&startRaw, &count)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		startRaw, count = "", 0
	case err != nil:
		return false, fmt.Errorf("failed to read quota window: %w", err)
	}

	windowStart := now
	if startRaw != "" {
		start, err := decodeTime(startRaw)
		if err != nil {
			return false, fmt.Errorf("failed to decode quota window: %w", err)
		}
		if now.Sub(start) < period {
			windowStart = start
		} else {
			count = 0
		}
	}

	if count >= max {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quota_windows (key, window_start, count)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			window_start = excluded.window_start,
			count = excluded.count`,
		key, encodeTime(windowStart), count+1)
	if err != nil {
		return false, fmt.Errorf("failed to consume quota: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit quota tx: %w", err)
	}
	return true, nil
}
