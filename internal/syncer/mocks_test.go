package syncer

import (
	"context"
	"sync/atomic"

	"quiettime/internal/journal"
)

// MockEntryRepo implements journal.EntryRepo with function fields. Calls
// fall through to the wrapped repo when the field is nil.
type MockEntryRepo struct {
	Wrapped  journal.EntryRepo
	PutFunc  func(ctx context.Context, sessionKey string, e journal.Entry) error
	ListFunc func(ctx context.Context, sessionKey string, q journal.Query) ([]journal.Entry, error)

	PutCalls  atomic.Int32
	ListCalls atomic.Int32
}

func (m *MockEntryRepo) Get(ctx context.Context, sessionKey, id string) (journal.Entry, error) {
	return m.Wrapped.Get(ctx, sessionKey, id)
}

func (m *MockEntryRepo) Put(ctx context.Context, sessionKey string, e journal.Entry) error {
	m.PutCalls.Add(1)
	if m.PutFunc != nil {
		return m.PutFunc(ctx, sessionKey, e)
	}
	return m.Wrapped.Put(ctx, sessionKey, e)
}

func (m *MockEntryRepo) Delete(ctx context.Context, sessionKey, id string) error {
	return m.Wrapped.Delete(ctx, sessionKey, id)
}

func (m *MockEntryRepo) List(ctx context.Context, sessionKey string, q journal.Query) ([]journal.Entry, error) {
	m.ListCalls.Add(1)
	if m.ListFunc != nil {
		return m.ListFunc(ctx, sessionKey, q)
	}
	return m.Wrapped.List(ctx, sessionKey, q)
}
