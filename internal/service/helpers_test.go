package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keepstash/keepstash/internal/domain"
	"github.com/keepstash/keepstash/internal/offline"
	"github.com/keepstash/keepstash/internal/sse"
	"github.com/keepstash/keepstash/internal/store/memory"
)

// fakeRemote is a RemoteSource with overridable behavior.
type fakeRemote struct {
	FetchAllFn func(ctx context.Context, userID string) ([]domain.SavedItem, error)
	PushFn     func(ctx context.Context, item domain.SavedItem) error

	mu     sync.Mutex
	pushed []string
}

func (f *fakeRemote) FetchAll(ctx context.Context, userID string) ([]domain.SavedItem, error) {
	if f.FetchAllFn != nil {
		return f.FetchAllFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeRemote) Push(ctx context.Context, item domain.SavedItem) error {
	if f.PushFn != nil {
		if err := f.PushFn(ctx, item); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.pushed = append(f.pushed, item.ID)
	f.mu.Unlock()
	return nil
}

func (f *fakeRemote) Pushed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pushed...)
}

// recordingEmitter keeps every emitted event.
type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.(sse.Event))
}

func (r *recordingEmitter) Types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]sse.EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}

func (r *recordingEmitter) States() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []string
	for _, e := range r.events {
		if data, ok := e.Data.(sse.SyncStateEventData); ok {
			states = append(states, data.State)
		}
	}
	return states
}

// fakeRefresher counts Refresh calls.
type fakeRefresher struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeRefresher) Refresh(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return nil
}

func (f *fakeRefresher) Users() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users...)
}

func setupCache(t *testing.T) *offline.Cache {
	t.Helper()
	c := offline.New(memory.New().Opener())
	require.NoError(t, c.Init(t.Context()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func tag(id, name string) domain.Tag {
	return domain.Tag{ID: id, Name: name, Confirmed: true}
}

func savedItem(id, userID, title string, tags ...domain.Tag) domain.SavedItem {
	return domain.SavedItem{
		ID:          id,
		UserID:      userID,
		Title:       title,
		ContentType: domain.ContentTypeArticle,
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Tags:        tags,
	}
}

func offlineIDs(t *testing.T, c *offline.Cache, userID string) []string {
	t.Helper()
	records, err := c.GetOfflineOnlyContents(t.Context(), userID)
	require.NoError(t, err)
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}
