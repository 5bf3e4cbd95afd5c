package journal

import (
	"context"
	"time"
)

// DayKey identifies the single draft slot: one per session per calendar day.
type DayKey struct {
	SessionKey string
	Day        string // "2006-01-02" in the caller's timezone
}

// NewDayKey computes the slot for now in tz.
func NewDayKey(sessionKey string, now time.Time, tz *time.Location) DayKey {
	if tz == nil {
		tz = time.UTC
	}
	return DayKey{
		SessionKey: sessionKey,
		Day:        now.In(tz).Format("2006-01-02"),
	}
}

// Query filters a committed-entry listing. Zero values mean "no filter";
// results are newest-first.
type Query struct {
	From         time.Time
	To           time.Time
	FavoriteOnly bool
	SearchText   string
	Limit        int
	Offset       int
}

// DraftRepo stores at most one draft per day key.
type DraftRepo interface {
	GetDraft(ctx context.Context, key DayKey) (Entry, error) // fault.NotFound when absent
	PutDraft(ctx context.Context, key DayKey, e Entry) error
	DeleteDraft(ctx context.Context, key DayKey) error // no-op when absent
}

// EntryRepo stores committed entries as permanent history.
type EntryRepo interface {
	Get(ctx context.Context, sessionKey, id string) (Entry, error)
	Put(ctx context.Context, sessionKey string, e Entry) error
	Delete(ctx context.Context, sessionKey, id string) error
	List(ctx context.Context, sessionKey string, q Query) ([]Entry, error)
}
