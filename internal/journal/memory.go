package journal

import (
	"context"
	"sort"
	"strings"
	"sync"

	"quiettime/internal/fault"
)

// MemoryDraftRepo is the in-memory DraftRepo used by tests and by callers
// that have not opened a database.
type MemoryDraftRepo struct {
	mu     sync.RWMutex
	drafts map[DayKey]Entry
}

// NewMemoryDraftRepo builds an empty draft store.
func NewMemoryDraftRepo() *MemoryDraftRepo {
	return &MemoryDraftRepo{drafts: make(map[DayKey]Entry)}
}

func (r *MemoryDraftRepo) GetDraft(_ context.Context, key DayKey) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.drafts[key]
	if !ok {
		return Entry{}, fault.NotFound("draft for " + key.Day)
	}
	return e, nil
}

func (r *MemoryDraftRepo) PutDraft(_ context.Context, key DayKey, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[key] = e
	return nil
}

func (r *MemoryDraftRepo) DeleteDraft(_ context.Context, key DayKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, key)
	return nil
}

// MemoryEntryRepo is the in-memory EntryRepo.
type MemoryEntryRepo struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry // sessionKey -> id -> entry
}

// NewMemoryEntryRepo builds an empty entry store.
func NewMemoryEntryRepo() *MemoryEntryRepo {
	return &MemoryEntryRepo{entries: make(map[string]map[string]Entry)}
}

func (r *MemoryEntryRepo) Get(_ context.Context, sessionKey, id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[sessionKey][id]
	if !ok {
		return Entry{}, fault.NotFound("entry " + id)
	}
	return e, nil
}

func (r *MemoryEntryRepo) Put(_ context.Context, sessionKey string, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[sessionKey] == nil {
		r.entries[sessionKey] = make(map[string]Entry)
	}
	r.entries[sessionKey][e.ID] = e
	return nil
}

func (r *MemoryEntryRepo) Delete(_ context.Context, sessionKey, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries[sessionKey], id)
	return nil
}

func (r *MemoryEntryRepo) List(_ context.Context, sessionKey string, q Query) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for _, e := range r.entries[sessionKey] {
		if matches(e, q) {
			out = append(out, e)
		}
	}
	// Newest first; id breaks exact-timestamp ties deterministically.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(e Entry, q Query) bool {
	if q.FavoriteOnly && !e.IsFavorite {
		return false
	}
	if !q.From.IsZero() && e.UpdatedAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && e.UpdatedAt.After(q.To) {
		return false
	}
	if q.SearchText != "" {
		needle := strings.ToLower(q.SearchText)
		var hit bool
		if strings.Contains(strings.ToLower(e.Verse.Text), needle) ||
			strings.Contains(strings.ToLower(e.Verse.Book), needle) {
			hit = true
		}
		for _, v := range e.Fields {
			if strings.Contains(strings.ToLower(v), needle) {
				hit = true
			}
		}
		if !hit {
			return false
		}
	}
	return true
}
