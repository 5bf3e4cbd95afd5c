package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"quiettime/internal/fault"
	"quiettime/internal/journal"
)

var (
	_ journal.DraftRepo = (*LocalStore)(nil)
	_ journal.EntryRepo = (*LocalStore)(nil)
)

// timeFormat is fixed-width UTC so the stored strings sort chronologically.
const timeFormat = "2006-01-02 15:04:05.000000000"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

// GetDraft returns the draft in the given day slot.
func (s *LocalStore) GetDraft(ctx context.Context, key journal.DayKey) (journal.Entry, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT entry_json FROM drafts WHERE session_key = ? AND day = ?`,
		key.SessionKey, key.Day).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Entry{}, fault.NotFound("draft for " + key.Day)
	}
	if err != nil {
		return journal.Entry{}, fmt.Errorf("failed to load draft: %w", err)
	}
	return decodeEntry(raw)
}

// PutDraft upserts the day slot.
func (s *LocalStore) PutDraft(ctx context.Context, key journal.DayKey, e journal.Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (session_key, day, entry_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_key, day) DO UPDATE SET
			entry_json = excluded.entry_json,
			updated_at = excluded.updated_at`,
		key.SessionKey, key.Day, string(raw), encodeTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to store draft: %w", err)
	}
	return nil
}

// DeleteDraft clears the day slot. Deleting an absent slot is not an error.
func (s *LocalStore) DeleteDraft(ctx context.Context, key journal.DayKey) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM drafts WHERE session_key = ? AND day = ?`,
		key.SessionKey, key.Day)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// Get returns one committed entry.
func (s *LocalStore) Get(ctx context.Context, sessionKey, id string) (journal.Entry, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT entry_json FROM entries WHERE session_key = ? AND id = ?`,
		sessionKey, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Entry{}, fault.NotFound("entry " + id)
	}
	if err != nil {
		return journal.Entry{}, fmt.Errorf("failed to load entry: %w", err)
	}
	return decodeEntry(raw)
}

// Put upserts a committed entry.
func (s *LocalStore) Put(ctx context.Context, sessionKey string, e journal.Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}
	fav := 0
	if e.IsFavorite {
		fav = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (session_key, id, entry_json, is_favorite, search_text, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_key, id) DO UPDATE SET
			entry_json = excluded.entry_json,
			is_favorite = excluded.is_favorite,
			search_text = excluded.search_text,
			updated_at = excluded.updated_at`,
		sessionKey, e.ID, string(raw), fav, searchText(e), encodeTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}
	return nil
}

// Delete removes a committed entry. Deleting an absent entry is not an
// error.
func (s *LocalStore) Delete(ctx context.Context, sessionKey, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE session_key = ? AND id = ?`,
		sessionKey, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// List returns committed entries matching q, newest first.
func (s *LocalStore) List(ctx context.Context, sessionKey string, q journal.Query) ([]journal.Entry, error) {
	query := `SELECT entry_json FROM entries WHERE session_key = ?`
	args := []interface{}{sessionKey}

	if q.FavoriteOnly {
		query += ` AND is_favorite = 1`
	}
	if !q.From.IsZero() {
		query += ` AND updated_at >= ?`
		args = append(args, encodeTime(q.From))
	}
	if !q.To.IsZero() {
		query += ` AND updated_at <= ?`
		args = append(args, encodeTime(q.To))
	}
	if q.SearchText != "" {
		query += ` AND search_text LIKE '%' || ? || '%'`
		args = append(args, strings.ToLower(q.SearchText))
	}

	query += ` ORDER BY updated_at DESC, id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	} else if q.Offset > 0 {
		// SQLite requires a LIMIT clause before OFFSET.
		query += ` LIMIT -1`
	}
	if q.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var out []journal.Entry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e, err := decodeEntry(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}
	return out, nil
}

func decodeEntry(raw string) (journal.Entry, error) {
	var e journal.Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return journal.Entry{}, fmt.Errorf("failed to decode entry: %w", err)
	}
	return e, nil
}

// searchText flattens the searchable parts of an entry into one lowercase
// string, matching what the in-memory repo searches.
func searchText(e journal.Entry) string {
	parts := []string{e.Verse.Book, e.Verse.Text}
	for _, field := range e.Template.Fields() {
		if v := e.Fields[field]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.ToLower(strings.Join(parts, "\n"))
}
