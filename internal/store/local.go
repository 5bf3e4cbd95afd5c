// Package store is the SQLite persistence layer. One database file holds
// the draft slots, the committed journal history, and the quota windows, so
// a single open handle serves every repository the app needs offline.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// LocalStore wraps the SQLite handle and implements journal.DraftRepo,
// journal.EntryRepo, and quota.Limiter.
type LocalStore struct {
	db       *sql.DB
	dbPath   string
	dailyMax int
	clock    func() time.Time
}

// NewLocalStore opens (or creates) the database at path and applies the
// schema.
func NewLocalStore(path string) (*LocalStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer keeps the transactional paths simple; WAL lets
	// readers proceed alongside it.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &LocalStore{db: db, dbPath: path, dailyMax: dailyMaxDefault, clock: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// WithClock replaces the time source. Test hook.
func (s *LocalStore) WithClock(clock func() time.Time) *LocalStore {
	s.clock = clock
	return s
}

// WithDailyMax sets the per-key daily allowance used by CheckDailyLimit.
// Zero is a valid allowance and denies every check; negative values keep
// the default.
func (s *LocalStore) WithDailyMax(max int) *LocalStore {
	if max >= 0 {
		s.dailyMax = max
	}
	return s
}

// Close closes the database connection.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *LocalStore) Path() string {
	return s.dbPath
}

// initialize creates the schema.
func (s *LocalStore) initialize() error {
	schema := `
	-- One draft slot per session per calendar day.
	CREATE TABLE IF NOT EXISTS drafts (
		session_key TEXT NOT NULL,
		day TEXT NOT NULL,
		entry_json TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (session_key, day)
	);

	-- Committed journal history.
	CREATE TABLE IF NOT EXISTS entries (
		session_key TEXT NOT NULL,
		id TEXT NOT NULL,
		entry_json TEXT NOT NULL,
		is_favorite INTEGER NOT NULL DEFAULT 0,
		search_text TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (session_key, id)
	);
	CREATE INDEX IF NOT EXISTS idx_entries_updated ON entries(session_key, updated_at);
	CREATE INDEX IF NOT EXISTS idx_entries_favorite ON entries(session_key, is_favorite);

	-- Fixed quota windows per key. window_start is TEXT on purpose: the
	-- store writes its own fixed-width timestamp format and a DATETIME
	-- decltype would make the driver hand back time.Time on scan.
	CREATE TABLE IF NOT EXISTS quota_windows (
		key TEXT PRIMARY KEY,
		window_start TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
