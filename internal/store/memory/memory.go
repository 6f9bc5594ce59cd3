// Package memory is a map-backed store.Backend for tests and the memory storage engine.
package memory

import (
	"bytes"
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/keepstash/keepstash/internal/store"
)

type record struct {
	value   []byte
	indexes map[string][]string
}

// Store keeps every table in process memory. Nothing survives Close.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string]record
	closed bool
}

var _ store.Backend = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{tables: make(map[string]map[string]record)}
}

// Opener returns a store.Opener that hands out s.
func (s *Store) Opener() store.Opener {
	return func(context.Context) (store.Backend, error) {
		return s, nil
	}
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(ctx context.Context, table, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	rec, ok := s.tables[table][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return bytes.Clone(rec.value), nil
}

// Put upserts all entries under one lock.
func (s *Store) Put(ctx context.Context, table string, entries ...store.Entry) error {
	return s.Write(ctx, store.Batch{Table: table, Entries: entries})
}

// Write upserts every batch under one lock. Nothing is written if any entry is invalid.
func (s *Store) Write(ctx context.Context, batches ...store.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	batches, err := store.ValidateBatches(batches)
	if err != nil {
		return err
	}

	for _, b := range batches {
		t, ok := s.tables[b.Table]
		if !ok {
			t = make(map[string]record)
			s.tables[b.Table] = t
		}
		for _, e := range b.Entries {
			indexes := make(map[string][]string, len(e.Indexes))
			for name, values := range e.Indexes {
				indexes[name] = slices.Clone(values)
			}
			t[e.Key] = record{value: bytes.Clone(e.Value), indexes: indexes}
		}
	}
	return nil
}

// GetAllByIndex returns values indexed under value in key order.
func (s *Store) GetAllByIndex(ctx context.Context, table, index, value string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var out [][]byte
	for _, key := range s.sortedKeys(table) {
		rec := s.tables[table][key]
		if slices.Contains(rec.indexes[index], value) {
			out = append(out, bytes.Clone(rec.value))
		}
	}
	return out, nil
}

// GetRangeByIndex returns values whose index value is in [lower, upper), ordered by value then key.
func (s *Store) GetRangeByIndex(ctx context.Context, table, index, lower, upper string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	type hit struct {
		value string
		key   string
	}
	var hits []hit
	for key, rec := range s.tables[table] {
		for _, v := range rec.indexes[index] {
			if v >= lower && (upper == "" || v < upper) {
				hits = append(hits, hit{value: v, key: key})
			}
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.value, b.value); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})

	out := make([][]byte, 0, len(hits))
	for _, h := range hits {
		out = append(out, bytes.Clone(s.tables[table][h.key].value))
	}
	return out, nil
}

// List returns every value of the table in key order.
func (s *Store) List(ctx context.Context, table string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	keys := s.sortedKeys(table)
	out := make([][]byte, 0, len(keys))
	for _, key := range keys {
		out = append(out, bytes.Clone(s.tables[table][key].value))
	}
	return out, nil
}

// Clear drops every table.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.tables = make(map[string]map[string]record)
	return nil
}

// Close marks the store closed; later calls fail with store.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) sortedKeys(table string) []string {
	keys := make([]string, 0, len(s.tables[table]))
	for key := range s.tables[table] {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
