package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiettime/internal/fault"
	"quiettime/internal/journal"
	"quiettime/internal/verse"
)

func openTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "quiettime.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func storeTestVerse(t *testing.T) verse.Verse {
	t.Helper()
	v, err := verse.New("시편", 23, 1, "여호와는 나의 목자시니", verse.TranslationKorean)
	require.NoError(t, err)
	return v
}

func storeTestDraft(t *testing.T, ts time.Time) journal.Entry {
	t.Helper()
	e, err := journal.NewDraft(storeTestVerse(t), journal.TemplateSOAP, ts)
	require.NoError(t, err)
	e.Fields["observation"] = "주께서 인도하신다"
	return e
}

func TestDraftRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	key := journal.NewDayKey("device:abc", ts, time.UTC)
	draft := storeTestDraft(t, ts)

	require.NoError(t, s.PutDraft(ctx, key, draft))

	got, err := s.GetDraft(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)
	assert.Equal(t, draft.Fields, got.Fields)
	assert.Equal(t, "시편 23:1", got.Verse.Reference())
	assert.True(t, draft.UpdatedAt.Equal(got.UpdatedAt))
}

func TestDraftMissingIsNotFound(t *testing.T) {
	s := openTestStore(t)

	key := journal.NewDayKey("device:abc", time.Now(), time.UTC)
	_, err := s.GetDraft(context.Background(), key)
	require.Error(t, err)
	assert.Equal(t, fault.KindNotFound, fault.KindOf(err))
}

func TestDraftUpsertReplacesSlot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	key := journal.NewDayKey("device:abc", ts, time.UTC)

	first := storeTestDraft(t, ts)
	require.NoError(t, s.PutDraft(ctx, key, first))

	second := storeTestDraft(t, ts.Add(time.Hour))
	second.Fields["observation"] = "고쳐 쓴 묵상"
	require.NoError(t, s.PutDraft(ctx, key, second))

	got, err := s.GetDraft(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, "고쳐 쓴 묵상", got.Fields["observation"])
}

func TestDraftDeleteIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts := time.Now()
	key := journal.NewDayKey("device:abc", ts, time.UTC)
	require.NoError(t, s.PutDraft(ctx, key, storeTestDraft(t, ts)))

	require.NoError(t, s.DeleteDraft(ctx, key))
	require.NoError(t, s.DeleteDraft(ctx, key))

	_, err := s.GetDraft(ctx, key)
	assert.Equal(t, fault.KindNotFound, fault.KindOf(err))
}

func TestEntryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	e := storeTestDraft(t, ts).Committed(ts.Add(time.Minute))
	require.NoError(t, s.Put(ctx, "user:u1", e))

	got, err := s.Get(ctx, "user:u1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, journal.StatusCommitted, got.Status)
	require.NotNil(t, got.CommittedAt)
	assert.True(t, e.CommittedAt.Equal(*got.CommittedAt))
}

func TestEntryScopedPerSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts := time.Now()
	e := storeTestDraft(t, ts).Committed(ts)
	require.NoError(t, s.Put(ctx, "user:u1", e))

	_, err := s.Get(ctx, "user:u2", e.ID)
	assert.Equal(t, fault.KindNotFound, fault.KindOf(err))
}

func TestListNewestFirstWithFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		e := storeTestDraft(t, base.Add(time.Duration(i)*time.Hour)).
			Committed(base.Add(time.Duration(i) * time.Hour))
		if i == 1 {
			e.IsFavorite = true
		}
		require.NoError(t, s.Put(ctx, "user:u1", e))
		ids = append(ids, e.ID)
	}

	all, err := s.List(ctx, "user:u1", journal.Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	favs, err := s.List(ctx, "user:u1", journal.Query{FavoriteOnly: true})
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, ids[1], favs[0].ID)

	ranged, err := s.List(ctx, "user:u1", journal.Query{From: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, ids[2], ranged[0].ID)

	paged, err := s.List(ctx, "user:u1", journal.Query{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, ids[1], paged[0].ID)
}

func TestListSearchMatchesFieldsAndVerse(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	e1 := storeTestDraft(t, ts).Committed(ts)
	e1.Fields["observation"] = "감사의 기록"
	require.NoError(t, s.Put(ctx, "user:u1", e1))

	e2 := storeTestDraft(t, ts.Add(time.Hour)).Committed(ts.Add(time.Hour))
	require.NoError(t, s.Put(ctx, "user:u1", e2))

	got, err := s.List(ctx, "user:u1", journal.Query{SearchText: "감사"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e1.ID, got[0].ID)

	byVerse, err := s.List(ctx, "user:u1", journal.Query{SearchText: "목자"})
	require.NoError(t, err)
	assert.Len(t, byVerse, 2)
}

func TestQuotaConsumeUntilDrained(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := s.CheckAndConsume(ctx, "generate_verse:u1", 3, 24*time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := s.CheckAndConsume(ctx, "generate_verse:u1", 3, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	// Other keys are unaffected.
	ok, err = s.CheckAndConsume(ctx, "generate_verse:u2", 3, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuotaWindowReadBackAfterConsume(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	ok, err := s.CheckAndConsume(ctx, "generate_verse:u1", 3, 24*time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	// The stored window must decode on the way back out, both on the
	// non-consuming check and on a further consume.
	ok, err = s.CheckDailyLimit(ctx, "generate_verse:u1", now, time.UTC)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CheckAndConsume(ctx, "generate_verse:u1", 3, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuotaZeroAllowanceDeniesChecks(t *testing.T) {
	s := openTestStore(t).WithDailyMax(0)
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	// No window row yet: the answer still reflects the allowance.
	ok, err := s.CheckDailyLimit(ctx, "generate_verse:u1", now, time.UTC)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CheckAndConsume(ctx, "generate_verse:u1", 0, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQuotaCheckDoesNotConsume(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		ok, err := s.CheckDailyLimit(ctx, "generate_verse:u1", now, time.UTC)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	for i := 0; i < 3; i++ {
		ok, err := s.CheckAndConsume(ctx, "generate_verse:u1", 3, 24*time.Hour)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := s.CheckDailyLimit(ctx, "generate_verse:u1", now, time.UTC)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQuotaWindowReset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 9, 1, 23, 0, 0, 0, time.UTC)
	s.WithClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		ok, err := s.CheckAndConsume(ctx, "generate_verse:u1", 3, 24*time.Hour)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := s.CheckAndConsume(ctx, "generate_verse:u1", 3, 24*time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	now = now.Add(25 * time.Hour)
	ok, err = s.CheckAndConsume(ctx, "generate_verse:u1", 3, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuotaSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quiettime.db")
	ctx := context.Background()

	s, err := NewLocalStore(path)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		ok, err := s.CheckAndConsume(ctx, "generate_verse:u1", 3, 24*time.Hour)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, s.Close())

	reopened, err := NewLocalStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	ok, err := reopened.CheckAndConsume(ctx, "generate_verse:u1", 3, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}
