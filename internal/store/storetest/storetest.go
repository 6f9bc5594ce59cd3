// Package storetest holds the behaviour every store.Backend must share.
// Each engine's tests call Run with a constructor.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepstash/keepstash/internal/errors"
	"github.com/keepstash/keepstash/internal/store"
)

// Run exercises newBackend against the Backend contract.
// newBackend must return a fresh, empty backend; Run closes it.
func Run(t *testing.T, newBackend func(t *testing.T) store.Backend) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, b store.Backend)
	}{
		{"GetMissing", testGetMissing},
		{"PutGet", testPutGet},
		{"UpsertReplacesValueAndIndexes", testUpsertReplacesIndexes},
		{"PutIsAtomic", testPutIsAtomic},
		{"WriteAcrossTables", testWriteAcrossTables},
		{"WriteIsAtomicAcrossTables", testWriteIsAtomicAcrossTables},
		{"GetAllByIndex", testGetAllByIndex},
		{"GetRangeByIndex", testGetRangeByIndex},
		{"ListKeyOrderAndTableIsolation", testList},
		{"Clear", testClear},
		{"ClosedBackend", testClosed},
		{"CanceledContext", testCanceledContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			t.Cleanup(func() { _ = b.Close() })
			tt.fn(t, b)
		})
	}
}

func entry(key, value string, indexes map[string][]string) store.Entry {
	return store.Entry{Key: key, Value: []byte(value), Indexes: indexes}
}

func strs(values [][]byte) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func testGetMissing(t *testing.T, b store.Backend) {
	_, err := b.Get(t.Context(), "contents", "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func testPutGet(t *testing.T, b store.Backend) {
	ctx := t.Context()
	require.NoError(t, b.Put(ctx, "contents", entry("a", `{"id":"a"}`, nil)))

	got, err := b.Get(ctx, "contents", "a")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a"}`, string(got))

	// Empty put is a no-op.
	require.NoError(t, b.Put(ctx, "contents"))
}

func testUpsertReplacesIndexes(t *testing.T, b store.Backend) {
	ctx := t.Context()
	require.NoError(t, b.Put(ctx, "contents", entry("a", "v1", map[string][]string{"user": {"u1"}})))
	require.NoError(t, b.Put(ctx, "contents", entry("a", "v2", map[string][]string{"user": {"u2"}})))

	got, err := b.Get(ctx, "contents", "a")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	old, err := b.GetAllByIndex(ctx, "contents", "user", "u1")
	require.NoError(t, err)
	assert.Empty(t, old, "stale index entry must be gone")

	cur, err := b.GetAllByIndex(ctx, "contents", "user", "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, strs(cur))

	all, err := b.List(ctx, "contents")
	require.NoError(t, err)
	assert.Len(t, all, 1, "upsert never duplicates a key")
}

func testPutIsAtomic(t *testing.T, b store.Backend) {
	ctx := t.Context()
	err := b.Put(ctx, "contents", entry("a", "v", nil), entry("", "bad", nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInvalidKey))

	_, err = b.Get(ctx, "contents", "a")
	assert.True(t, errors.Is(err, store.ErrNotFound), "no entry of a failed put is written")
}

func testWriteAcrossTables(t *testing.T, b store.Backend) {
	ctx := t.Context()
	require.NoError(t, b.Write(ctx,
		store.Batch{Table: "contents", Entries: []store.Entry{entry("a", "item", map[string][]string{"user": {"u1"}})}},
		store.Batch{Table: "tags", Entries: []store.Entry{entry("t1", "tag", map[string][]string{"user": {"u1"}})}},
		store.Batch{Table: "empty"},
	))

	got, err := b.GetAllByIndex(ctx, "contents", "user", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"item"}, strs(got))

	got, err = b.GetAllByIndex(ctx, "tags", "user", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tag"}, strs(got))
}

func testWriteIsAtomicAcrossTables(t *testing.T, b store.Backend) {
	ctx := t.Context()
	err := b.Write(ctx,
		store.Batch{Table: "contents", Entries: []store.Entry{entry("a", "item", nil)}},
		store.Batch{Table: "tags", Entries: []store.Entry{entry("", "bad", nil)}},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInvalidKey))

	_, err = b.Get(ctx, "contents", "a")
	assert.True(t, errors.Is(err, store.ErrNotFound), "a failed write leaves every table untouched")
}

func testGetAllByIndex(t *testing.T, b store.Backend) {
	ctx := t.Context()
	require.NoError(t, b.Put(ctx, "contents",
		entry("c", "c", map[string][]string{"user": {"u1"}}),
		entry("a", "a", map[string][]string{"user": {"u1"}}),
		entry("b", "b", map[string][]string{"user": {"u10"}}),
		entry("d", "d", nil),
	))

	got, err := b.GetAllByIndex(ctx, "contents", "user", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, strs(got), "exact value match in key order")

	none, err := b.GetAllByIndex(ctx, "contents", "user", "u2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testGetRangeByIndex(t *testing.T, b store.Backend) {
	ctx := t.Context()
	for i, ts := range []string{"2026-01-03", "2026-01-01", "2026-01-02", "2026-01-04"} {
		key := fmt.Sprintf("k%d", i)
		require.NoError(t, b.Put(ctx, "contents", entry(key, ts, map[string][]string{"synced_at": {ts}})))
	}

	got, err := b.GetRangeByIndex(ctx, "contents", "synced_at", "2026-01-02", "2026-01-04")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-02", "2026-01-03"}, strs(got))

	open, err := b.GetRangeByIndex(ctx, "contents", "synced_at", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-01", "2026-01-02", "2026-01-03", "2026-01-04"}, strs(open))
}

func testList(t *testing.T, b store.Backend) {
	ctx := t.Context()
	require.NoError(t, b.Put(ctx, "contents", entry("b", "b", nil), entry("a", "a", nil)))
	require.NoError(t, b.Put(ctx, "tags", entry("t", "t", map[string][]string{"user": {"u1"}})))

	contents, err := b.List(ctx, "contents")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, strs(contents))

	tags, err := b.List(ctx, "tags")
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, strs(tags))

	empty, err := b.List(ctx, "syncMeta")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testClear(t *testing.T, b store.Backend) {
	ctx := t.Context()
	require.NoError(t, b.Put(ctx, "contents", entry("a", "a", map[string][]string{"user": {"u1"}})))
	require.NoError(t, b.Put(ctx, "syncMeta", entry("lastContentSync", "x", nil)))

	require.NoError(t, b.Clear(ctx))

	for _, table := range []string{"contents", "syncMeta"} {
		all, err := b.List(ctx, table)
		require.NoError(t, err)
		assert.Empty(t, all, table)
	}
	byUser, err := b.GetAllByIndex(ctx, "contents", "user", "u1")
	require.NoError(t, err)
	assert.Empty(t, byUser)

	// Usable after clear.
	require.NoError(t, b.Put(ctx, "contents", entry("a", "again", nil)))
}

func testClosed(t *testing.T, b store.Backend) {
	require.NoError(t, b.Close())

	_, err := b.Get(t.Context(), "contents", "a")
	assert.True(t, errors.Is(err, store.ErrClosed))
	assert.True(t, errors.Is(err, errors.ErrStorageUnavailable))

	// Closing twice is harmless.
	assert.NoError(t, b.Close())
}

func testCanceledContext(t *testing.T, b store.Backend) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := b.Put(ctx, "contents", entry("a", "a", nil))
	assert.ErrorIs(t, err, context.Canceled)
}
