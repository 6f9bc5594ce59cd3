// Package offline is the local persistent cache of saved items and tags.
//
// The cache survives restarts and network loss. Records created while
// disconnected are flagged offline-only until the reconciler pushes them.
package offline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/keepstash/keepstash/internal/domain"
	"github.com/keepstash/keepstash/internal/errors"
	"github.com/keepstash/keepstash/internal/logger"
	"github.com/keepstash/keepstash/internal/store"
)

// Table and index names of the persisted layout.
const (
	TableContents = "contents"
	TableTags     = "tags"
	TableSyncMeta = "syncMeta"

	IndexUser     = "user"
	IndexSyncedAt = "synced_at"

	metaLastContentSync = "lastContentSync"
	metaLastTagSync     = "lastTagSync"
)

// syncMeta is one row of the syncMeta table.
type syncMeta struct {
	Key   string `json:"key"`
	Value string `json:"value"` // RFC3339Nano
}

// Cache is the offline store. Build it with New and call Init before anything else.
type Cache struct {
	opener store.Opener
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	ready   chan struct{} // closed once the first Init finishes
	started bool
	initErr error

	backend  store.Backend
	contents *store.Entity[domain.OfflineRecord]
	tags     *store.Entity[domain.OfflineTag]
	meta     *store.Entity[syncMeta]
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// New creates a Cache that opens its backend through opener on Init.
func New(opener store.Opener, opts ...Option) *Cache {
	c := &Cache{
		opener: opener,
		now:    time.Now,
		logger: logger.Discard(),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init opens the backend. It is idempotent: the first call does the work,
// concurrent callers wait for it, later callers get its outcome.
// A failing opener surfaces as errors.ErrStorageUnavailable.
func (c *Cache) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		select {
		case <-c.ready:
			return c.initErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.started = true
	c.mu.Unlock()

	c.initErr = c.open(ctx)
	close(c.ready)
	return c.initErr
}

func (c *Cache) open(ctx context.Context) error {
	backend, err := c.opener(ctx)
	if err != nil {
		c.logger.Warn("offline storage unavailable, offline features disabled", "error", err)
		return errors.Unavailable(err)
	}

	c.backend = backend
	c.contents = store.NewEntity[domain.OfflineRecord](backend, TableContents,
		func(r *domain.OfflineRecord) string { return r.ID }).
		WithIndex(IndexUser, func(r *domain.OfflineRecord) []string {
			return []string{r.UserID}
		}).
		WithIndex(IndexSyncedAt, func(r *domain.OfflineRecord) []string {
			return []string{FormatSortable(r.LastSyncedAt)}
		})
	c.tags = store.NewEntity[domain.OfflineTag](backend, TableTags,
		func(t *domain.OfflineTag) string { return t.ID }).
		WithIndex(IndexUser, func(t *domain.OfflineTag) []string {
			return []string{t.UserID}
		})
	c.meta = store.NewEntity[syncMeta](backend, TableSyncMeta,
		func(m *syncMeta) string { return m.Key })

	c.logger.Info("offline cache ready")
	return nil
}

// Available reports whether Init completed successfully.
func (c *Cache) Available() bool {
	select {
	case <-c.ready:
		return c.initErr == nil
	default:
		return false
	}
}

// await gates every operation: before Init it fails with ErrNotInitialized,
// during Init it waits, after a failed Init it returns that failure.
func (c *Cache) await(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return errors.ErrNotInitialized
	}

	select {
	case <-c.ready:
		return c.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the backend if Init opened one.
func (c *Cache) Close() error {
	if !c.Available() {
		return nil
	}
	return c.backend.Close()
}

// CacheContent upserts items as synced records stamped now and records the
// content sync time. All writes happen in one transaction.
func (c *Cache) CacheContent(ctx context.Context, items []domain.SavedItem) error {
	if err := c.await(ctx); err != nil {
		return err
	}
	if items == nil {
		items = []domain.SavedItem{}
	}
	if err := c.write(ctx, c.now(), items, nil); err != nil {
		return fmt.Errorf("cache content: %w", err)
	}
	return nil
}

// CacheTags upserts tags and records the tag sync time in one transaction.
func (c *Cache) CacheTags(ctx context.Context, tags []domain.Tag) error {
	if err := c.await(ctx); err != nil {
		return err
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	if err := c.write(ctx, c.now(), nil, tags); err != nil {
		return fmt.Errorf("cache tags: %w", err)
	}
	return nil
}

// Merge caches items and the tags they carry, de-duplicated by tag id, and
// records both sync times. Either everything is written or nothing is.
func (c *Cache) Merge(ctx context.Context, items []domain.SavedItem) error {
	if err := c.await(ctx); err != nil {
		return err
	}
	if items == nil {
		items = []domain.SavedItem{}
	}
	tags := domain.UniqueTags(items)
	if tags == nil {
		tags = []domain.Tag{}
	}
	if err := c.write(ctx, c.now(), items, tags); err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	return nil
}

// write upserts items when non-nil and tags when non-nil, plus the matching
// sync times, in one backend transaction.
func (c *Cache) write(ctx context.Context, now time.Time, items []domain.SavedItem, tags []domain.Tag) error {
	var (
		batches []store.Batch
		meta    []*syncMeta
	)
	stamp := now.UTC().Format(time.RFC3339Nano)

	if items != nil {
		records := make([]*domain.OfflineRecord, len(items))
		for i, item := range items {
			r := domain.NewOfflineRecord(item, now, false)
			records[i] = &r
		}
		b, err := c.contents.Batch(records...)
		if err != nil {
			return err
		}
		batches = append(batches, b)
		meta = append(meta, &syncMeta{Key: metaLastContentSync, Value: stamp})
	}

	if tags != nil {
		cached := make([]*domain.OfflineTag, len(tags))
		for i, t := range tags {
			cached[i] = &domain.OfflineTag{Tag: t, LastSyncedAt: now}
		}
		b, err := c.tags.Batch(cached...)
		if err != nil {
			return err
		}
		batches = append(batches, b)
		meta = append(meta, &syncMeta{Key: metaLastTagSync, Value: stamp})
	}

	b, err := c.meta.Batch(meta...)
	if err != nil {
		return err
	}
	return c.backend.Write(ctx, append(batches, b)...)
}

// GetOfflineContents returns every cached record of the user.
func (c *Cache) GetOfflineContents(ctx context.Context, userID string) ([]domain.OfflineRecord, error) {
	if err := c.await(ctx); err != nil {
		return nil, err
	}
	records, err := c.contents.GetAllByIndex(ctx, IndexUser, userID)
	if err != nil {
		return nil, fmt.Errorf("get offline contents: %w", err)
	}
	return deref(records), nil
}

// GetOfflineContent returns one cached record.
func (c *Cache) GetOfflineContent(ctx context.Context, id string) (*domain.OfflineRecord, error) {
	if err := c.await(ctx); err != nil {
		return nil, err
	}
	r, err := c.contents.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("offline content %s not found", id)
		}
		return nil, fmt.Errorf("get offline content: %w", err)
	}
	return r, nil
}

// GetOfflineTags returns every cached tag of the user.
func (c *Cache) GetOfflineTags(ctx context.Context, userID string) ([]domain.OfflineTag, error) {
	if err := c.await(ctx); err != nil {
		return nil, err
	}
	tags, err := c.tags.GetAllByIndex(ctx, IndexUser, userID)
	if err != nil {
		return nil, fmt.Errorf("get offline tags: %w", err)
	}
	return deref(tags), nil
}

// AddOfflineContent stores item as offline-only, overwriting any record with the same id.
func (c *Cache) AddOfflineContent(ctx context.Context, item domain.SavedItem) error {
	if err := c.await(ctx); err != nil {
		return err
	}
	r := domain.NewOfflineRecord(item, c.now(), true)
	if err := c.contents.Put(ctx, &r); err != nil {
		return fmt.Errorf("add offline content: %w", err)
	}
	return nil
}

// GetOfflineOnlyContents returns the user's records not yet pushed to the remote.
func (c *Cache) GetOfflineOnlyContents(ctx context.Context, userID string) ([]domain.OfflineRecord, error) {
	records, err := c.GetOfflineContents(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending := records[:0]
	for _, r := range records {
		if r.IsOfflineOnly {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// MarkContentSynced clears the offline-only flag of id and bumps its sync time.
// An unknown id is not an error.
func (c *Cache) MarkContentSynced(ctx context.Context, id string) error {
	if err := c.await(ctx); err != nil {
		return err
	}

	r, err := c.contents.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark content synced: %w", err)
	}

	r.MarkSynced(c.now())
	if err := c.contents.Put(ctx, r); err != nil {
		return fmt.Errorf("mark content synced: %w", err)
	}
	return nil
}

// ClearOfflineData wipes every record and all sync metadata. It cannot be undone.
func (c *Cache) ClearOfflineData(ctx context.Context) error {
	if err := c.await(ctx); err != nil {
		return err
	}
	if err := c.backend.Clear(ctx); err != nil {
		return fmt.Errorf("clear offline data: %w", err)
	}
	c.logger.Info("offline data cleared")
	return nil
}

// GetLastSyncTime returns when kind was last cached from the remote, or nil if never.
func (c *Cache) GetLastSyncTime(ctx context.Context, kind domain.SyncKind) (*time.Time, error) {
	if err := c.await(ctx); err != nil {
		return nil, err
	}

	var key string
	switch kind {
	case domain.SyncKindContent:
		key = metaLastContentSync
	case domain.SyncKindTag:
		key = metaLastTagSync
	default:
		return nil, errors.Validationf("unknown sync kind %q", kind)
	}

	m, err := c.meta.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last sync time: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, m.Value)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	return &t, nil
}

// ContentsSyncedBefore returns every record whose LastSyncedAt is before t, oldest first.
func (c *Cache) ContentsSyncedBefore(ctx context.Context, t time.Time) ([]domain.OfflineRecord, error) {
	if err := c.await(ctx); err != nil {
		return nil, err
	}
	records, err := c.contents.GetRangeByIndex(ctx, IndexSyncedAt, "", FormatSortable(t))
	if err != nil {
		return nil, fmt.Errorf("contents synced before: %w", err)
	}
	return deref(records), nil
}

// Stats summarizes the cache contents.
type Stats struct {
	Contents        int        `json:"contents"`
	OfflineOnly     int        `json:"offline_only"`
	Tags            int        `json:"tags"`
	LastContentSync *time.Time `json:"last_content_sync,omitempty"`
	LastTagSync     *time.Time `json:"last_tag_sync,omitempty"`
}

// Stats counts records across all users.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	if err := c.await(ctx); err != nil {
		return Stats{}, err
	}

	var s Stats
	for r, err := range c.contents.List(ctx) {
		if err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
		s.Contents++
		if r.IsOfflineOnly {
			s.OfflineOnly++
		}
	}

	tags, err := c.tags.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	s.Tags = tags

	if s.LastContentSync, err = c.GetLastSyncTime(ctx, domain.SyncKindContent); err != nil {
		return Stats{}, err
	}
	if s.LastTagSync, err = c.GetLastSyncTime(ctx, domain.SyncKindTag); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// AllContents returns every cached record across users, in id order.
func (c *Cache) AllContents(ctx context.Context) ([]domain.OfflineRecord, error) {
	if err := c.await(ctx); err != nil {
		return nil, err
	}
	var out []domain.OfflineRecord
	for r, err := range c.contents.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("all contents: %w", err)
		}
		out = append(out, *r)
	}
	return out, nil
}

// FormatSortable renders t so that lexical order equals chronological order.
// Fixed-width nanoseconds keep RFC3339 strings comparable.
func FormatSortable(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func deref[T any](ptrs []*T) []T {
	out := make([]T, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}
