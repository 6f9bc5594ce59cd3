package offline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepstash/keepstash/internal/domain"
	"github.com/keepstash/keepstash/internal/errors"
	"github.com/keepstash/keepstash/internal/store"
	"github.com/keepstash/keepstash/internal/store/memory"
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupCache(t *testing.T) (*Cache, *clock) {
	t.Helper()
	clk := newClock()
	c := New(memory.New().Opener(), WithClock(clk.Now))
	require.NoError(t, c.Init(t.Context()))
	t.Cleanup(func() { _ = c.Close() })
	return c, clk
}

func savedItem(id, userID string, tags ...domain.Tag) domain.SavedItem {
	return domain.SavedItem{
		ID:          id,
		UserID:      userID,
		Title:       "Item " + id,
		ContentType: domain.ContentTypeNote,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Tags:        tags,
	}
}

func TestCache_BeforeInit(t *testing.T) {
	c := New(memory.New().Opener())

	_, err := c.GetOfflineContents(t.Context(), "u1")
	assert.ErrorIs(t, err, errors.ErrNotInitialized)
	assert.ErrorIs(t, c.CacheContent(t.Context(), nil), errors.ErrNotInitialized)
	assert.False(t, c.Available())
}

func TestCache_InitIdempotent(t *testing.T) {
	opened := 0
	backend := memory.New()
	c := New(func(context.Context) (store.Backend, error) {
		opened++
		return backend, nil
	})

	require.NoError(t, c.Init(t.Context()))
	require.NoError(t, c.Init(t.Context()))
	assert.Equal(t, 1, opened)
	assert.True(t, c.Available())
}

func TestCache_CallersWaitForInit(t *testing.T) {
	release := make(chan struct{})
	c := New(func(context.Context) (store.Backend, error) {
		<-release
		return memory.New(), nil
	})

	initDone := make(chan error, 1)
	go func() { initDone <- c.Init(context.Background()) }()

	// Wait until Init has claimed the work.
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.started
	}, time.Second, time.Millisecond)

	opDone := make(chan error, 1)
	go func() {
		_, err := c.GetOfflineContents(context.Background(), "u1")
		opDone <- err
	}()

	select {
	case <-opDone:
		t.Fatal("operation finished before Init")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-initDone)
	require.NoError(t, <-opDone)
}

func TestCache_StorageUnavailable(t *testing.T) {
	cause := errors.New("disk is read-only")
	c := New(func(context.Context) (store.Backend, error) {
		return nil, cause
	})

	err := c.Init(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.False(t, c.Available())

	// Every later call sees the same failure rather than crashing.
	_, err = c.GetOfflineTags(t.Context(), "u1")
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
	assert.NoError(t, c.Close())
}

func TestCache_CacheContentUpsertIdempotent(t *testing.T) {
	c, clk := setupCache(t)
	ctx := t.Context()
	item := savedItem("a", "u1")

	require.NoError(t, c.CacheContent(ctx, []domain.SavedItem{item}))
	first := clk.Now()
	clk.Advance(time.Minute)
	require.NoError(t, c.CacheContent(ctx, []domain.SavedItem{item}))

	records, err := c.GetOfflineContents(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)
	assert.True(t, records[0].LastSyncedAt.After(first))
	assert.True(t, clk.Now().Equal(records[0].LastSyncedAt))
	assert.False(t, records[0].IsOfflineOnly)

	last, err := c.GetLastSyncTime(ctx, domain.SyncKindContent)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, clk.Now().Equal(*last))
}

func TestCache_OfflineRoundTrip(t *testing.T) {
	c, _ := setupCache(t)
	ctx := t.Context()
	x := savedItem("x", "u1")

	require.NoError(t, c.AddOfflineContent(ctx, x))

	pending, err := c.GetOfflineOnlyContents(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "x", pending[0].ID)
	assert.True(t, pending[0].IsOfflineOnly)

	require.NoError(t, c.MarkContentSynced(ctx, "x"))

	pending, err = c.GetOfflineOnlyContents(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := c.GetOfflineContents(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 1, "synced record stays cached")
}

func TestCache_MarkContentSyncedUnknownID(t *testing.T) {
	c, _ := setupCache(t)
	assert.NoError(t, c.MarkContentSynced(t.Context(), "missing"))
}

func TestCache_MarkContentSyncedBumpsTimestamp(t *testing.T) {
	c, clk := setupCache(t)
	ctx := t.Context()
	require.NoError(t, c.AddOfflineContent(ctx, savedItem("x", "u1")))

	clk.Advance(time.Hour)
	require.NoError(t, c.MarkContentSynced(ctx, "x"))

	r, err := c.GetOfflineContent(ctx, "x")
	require.NoError(t, err)
	assert.True(t, clk.Now().Equal(r.LastSyncedAt))
	assert.False(t, r.IsOfflineOnly)
}

func TestCache_PerUserIsolation(t *testing.T) {
	c, _ := setupCache(t)
	ctx := t.Context()

	require.NoError(t, c.CacheContent(ctx, []domain.SavedItem{savedItem("a", "u1"), savedItem("b", "u2")}))
	require.NoError(t, c.AddOfflineContent(ctx, savedItem("c", "u2")))

	u1, err := c.GetOfflineContents(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, u1, 1)

	pending, err := c.GetOfflineOnlyContents(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	pending, err = c.GetOfflineOnlyContents(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c", pending[0].ID)
}

func TestCache_Tags(t *testing.T) {
	c, clk := setupCache(t)
	ctx := t.Context()

	never, err := c.GetLastSyncTime(ctx, domain.SyncKindTag)
	require.NoError(t, err)
	assert.Nil(t, never)

	tags := []domain.Tag{
		{ID: "t1", UserID: "u1", Name: "react"},
		{ID: "t2", UserID: "u1", Name: "perf", AutoGenerated: true},
		{ID: "t3", UserID: "u2", Name: "food"},
	}
	require.NoError(t, c.CacheTags(ctx, tags))
	require.NoError(t, c.CacheTags(ctx, tags[:1]))

	got, err := c.GetOfflineTags(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "react", got[0].Name)
	assert.True(t, got[1].IsPending())
	assert.True(t, clk.Now().Equal(got[0].LastSyncedAt))

	last, err := c.GetLastSyncTime(ctx, domain.SyncKindTag)
	require.NoError(t, err)
	require.NotNil(t, last)
}

func TestCache_GetLastSyncTimeUnknownKind(t *testing.T) {
	c, _ := setupCache(t)
	_, err := c.GetLastSyncTime(t.Context(), "bookmarks")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestCache_ClearOfflineData(t *testing.T) {
	c, _ := setupCache(t)
	ctx := t.Context()

	require.NoError(t, c.CacheContent(ctx, []domain.SavedItem{savedItem("a", "u1")}))
	require.NoError(t, c.CacheTags(ctx, []domain.Tag{{ID: "t1", UserID: "u1", Name: "go"}}))
	require.NoError(t, c.AddOfflineContent(ctx, savedItem("b", "u1")))

	require.NoError(t, c.ClearOfflineData(ctx))

	contents, err := c.GetOfflineContents(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, contents)
	tags, err := c.GetOfflineTags(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, tags)
	last, err := c.GetLastSyncTime(ctx, domain.SyncKindContent)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestCache_GetOfflineContentNotFound(t *testing.T) {
	c, _ := setupCache(t)
	_, err := c.GetOfflineContent(t.Context(), "nope")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCache_ContentsSyncedBefore(t *testing.T) {
	c, clk := setupCache(t)
	ctx := t.Context()

	require.NoError(t, c.CacheContent(ctx, []domain.SavedItem{savedItem("old", "u1")}))
	clk.Advance(time.Hour)
	cutoff := clk.Now()
	clk.Advance(time.Hour)
	require.NoError(t, c.CacheContent(ctx, []domain.SavedItem{savedItem("new", "u1")}))

	stale, err := c.ContentsSyncedBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].ID)
}

func TestCache_Stats(t *testing.T) {
	c, _ := setupCache(t)
	ctx := t.Context()

	require.NoError(t, c.CacheContent(ctx, []domain.SavedItem{savedItem("a", "u1"), savedItem("b", "u2")}))
	require.NoError(t, c.AddOfflineContent(ctx, savedItem("c", "u1")))
	require.NoError(t, c.CacheTags(ctx, []domain.Tag{{ID: "t1", UserID: "u1", Name: "go"}}))

	s, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Contents)
	assert.Equal(t, 1, s.OfflineOnly)
	assert.Equal(t, 1, s.Tags)
	assert.NotNil(t, s.LastContentSync)
	assert.NotNil(t, s.LastTagSync)

	all, err := c.AllContents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCache_BadgerBackend(t *testing.T) {
	dir := t.TempDir()
	open := func(context.Context) (store.Backend, error) {
		return store.New(dir, nil)
	}
	ctx := t.Context()

	c := New(open)
	require.NoError(t, c.Init(ctx))
	require.NoError(t, c.AddOfflineContent(ctx, savedItem("x", "u1", domain.Tag{ID: "t1", Name: "go"})))
	require.NoError(t, c.Close())

	// Offline-only records survive a restart.
	c = New(open)
	require.NoError(t, c.Init(ctx))
	defer c.Close()

	pending, err := c.GetOfflineOnlyContents(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "go", pending[0].Tags[0].Name)
}

func TestFormatSortable(t *testing.T) {
	a := time.Date(2026, 1, 1, 0, 0, 0, 5, time.UTC)
	b := time.Date(2026, 1, 1, 0, 0, 0, 40, time.UTC)

	assert.Less(t, FormatSortable(a), FormatSortable(b))
	assert.Len(t, FormatSortable(a), 30)
}

func TestCache_MergeWritesContentsTagsAndMeta(t *testing.T) {
	c, clk := setupCache(t)
	ctx := t.Context()

	react := domain.Tag{ID: "t1", Name: "react"}
	require.NoError(t, c.Merge(ctx, []domain.SavedItem{
		savedItem("a", "u1", react),
		savedItem("b", "u1", react),
	}))

	records, err := c.GetOfflineContents(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	tags, err := c.GetOfflineTags(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tags, 1, "tags de-duplicated by id and owned by the item's user")

	for _, kind := range []domain.SyncKind{domain.SyncKindContent, domain.SyncKindTag} {
		last, err := c.GetLastSyncTime(ctx, kind)
		require.NoError(t, err)
		require.NotNil(t, last, kind)
		assert.True(t, clk.Now().Equal(*last))
	}
}

func TestCache_MergeIsAtomic(t *testing.T) {
	c, _ := setupCache(t)
	ctx := t.Context()

	err := c.Merge(ctx, []domain.SavedItem{
		savedItem("a", "u1", domain.Tag{ID: "", Name: "no id"}),
	})
	require.Error(t, err)

	records, err := c.GetOfflineContents(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, records, "a rejected tag keeps the contents out too")

	last, err := c.GetLastSyncTime(ctx, domain.SyncKindContent)
	require.NoError(t, err)
	assert.Nil(t, last)
}
