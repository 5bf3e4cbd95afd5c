package journal

import (
	"context"
	"time"

	"go.uber.org/zap"

	"quiettime/internal/fault"
	"quiettime/internal/session"
)

// Service is the use-case layer over the draft slot and the permanent
// entry history. It owns the Draft -> Committed transition.
type Service struct {
	drafts  *DraftManager
	entries EntryRepo
	logger  *zap.Logger
}

// NewService wires the journal use cases.
func NewService(drafts *DraftManager, entries EntryRepo, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{drafts: drafts, entries: entries, logger: logger}
}

// Drafts exposes the draft lifecycle manager.
func (s *Service) Drafts() *DraftManager { return s.drafts }

// Commit finalizes today's draft into permanent history and clears the
// draft slot, so a stale draft can never coexist with the committed entry
// for the same day. The input must be a draft.
func (s *Service) Commit(ctx context.Context, sess session.Session, now time.Time, tz *time.Location, e Entry) (Entry, error) {
	if e.Status != StatusDraft {
		return Entry{}, fault.ValidationFailed("commit requires a draft entry")
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}

	key := NewDayKey(sess.Key(), now, tz)
	lock := s.drafts.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	committed := e.Committed(now)
	if err := s.entries.Put(ctx, sess.Key(), committed); err != nil {
		return Entry{}, err
	}
	if err := s.drafts.repo.DeleteDraft(ctx, key); err != nil {
		// History already holds the committed entry; a leftover draft is
		// recoverable on the next load, so commit still succeeds.
		s.logger.Warn("failed to clear draft slot after commit",
			zap.String("day", key.Day), zap.Error(err))
	}

	s.logger.Info("entry committed",
		zap.String("entry_id", committed.ID),
		zap.String("day", key.Day))
	return committed, nil
}

// List returns committed history, newest first.
func (s *Service) List(ctx context.Context, sess session.Session, q Query) ([]Entry, error) {
	return s.entries.List(ctx, sess.Key(), q)
}

// SetFavorite flips the only flag a committed entry may still change.
func (s *Service) SetFavorite(ctx context.Context, sess session.Session, id string, favorite bool, now time.Time) (Entry, error) {
	e, err := s.entries.Get(ctx, sess.Key(), id)
	if err != nil {
		return Entry{}, err
	}
	e.IsFavorite = favorite
	e.UpdatedAt = now
	if err := s.entries.Put(ctx, sess.Key(), e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Delete removes a committed entry. Permanent history goes away only by
// explicit user action, which is exactly this call.
func (s *Service) Delete(ctx context.Context, sess session.Session, id string) error {
	return s.entries.Delete(ctx, sess.Key(), id)
}
