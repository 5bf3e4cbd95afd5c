package journal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"quiettime/internal/fault"
	"quiettime/internal/session"
)

// DraftManager enforces the "at most one in-progress entry per day" rule.
// It owns the NoDraft -> Draft transitions; committing is the Service's job.
// Writes for the same (session, day) key are serialized so concurrent saves
// cannot lose updates.
type DraftManager struct {
	repo   DraftRepo
	logger *zap.Logger

	mu    sync.Mutex
	locks map[DayKey]*sync.Mutex
}

// NewDraftManager builds the manager over a draft repository.
func NewDraftManager(repo DraftRepo, logger *zap.Logger) *DraftManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftManager{
		repo:   repo,
		logger: logger,
		locks:  make(map[DayKey]*sync.Mutex),
	}
}

// keyLock returns the mutex serializing writes for one day key.
func (m *DraftManager) keyLock(key DayKey) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Load returns today's draft for the session, or a NotFound fault.
func (m *DraftManager) Load(ctx context.Context, sess session.Session, now time.Time, tz *time.Location) (Entry, error) {
	return m.repo.GetDraft(ctx, NewDayKey(sess.Key(), now, tz))
}

// Save upserts today's draft. It is idempotent for the same entry and
// rejects anything whose status is not draft.
func (m *DraftManager) Save(ctx context.Context, sess session.Session, now time.Time, tz *time.Location, e Entry) error {
	if e.Status != StatusDraft {
		return fault.ValidationFailed("only draft entries can be saved to the draft slot")
	}
	if err := e.Validate(); err != nil {
		return err
	}

	key := NewDayKey(sess.Key(), now, tz)
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	e.UpdatedAt = now
	if err := m.repo.PutDraft(ctx, key, e); err != nil {
		return err
	}
	m.logger.Debug("draft saved",
		zap.String("session", sess.Kind().String()),
		zap.String("day", key.Day),
		zap.String("entry_id", e.ID))
	return nil
}

// Discard removes today's draft. Succeeds as a no-op when none exists.
func (m *DraftManager) Discard(ctx context.Context, sess session.Session, now time.Time, tz *time.Location) error {
	key := NewDayKey(sess.Key(), now, tz)
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	return m.repo.DeleteDraft(ctx, key)
}
