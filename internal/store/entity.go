package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
)

// Entity provides typed access to one Backend table holding JSON-encoded T values.
type Entity[T any] struct {
	backend Backend
	table   string
	keyOf   func(*T) string
	indexes []Index[T]
}

// Index defines a secondary index on an entity.
type Index[T any] struct {
	name            string
	keyGen          func(*T) []string
	lookupTransform func(string) string // Optional transformation for lookups
}

// NewEntity creates a new Entity for type T stored in table and keyed by keyOf.
func NewEntity[T any](b Backend, table string, keyOf func(*T) string) *Entity[T] {
	return &Entity[T]{
		backend: b,
		table:   table,
		keyOf:   keyOf,
	}
}

// WithIndex adds a secondary index to the entity.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:   name,
		keyGen: keyGen,
	})
	return e
}

// WithIndexTransform adds a secondary index with lookup transformation.
// The transform is applied to lookup values, enabling case-insensitive searches.
func (e *Entity[T]) WithIndexTransform(name string, keyGen func(*T) []string, lookupTransform func(string) string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:            name,
		keyGen:          keyGen,
		lookupTransform: lookupTransform,
	})
	return e
}

// Table returns the backend table name.
func (e *Entity[T]) Table() string {
	return e.table
}

// entry encodes one entity with its index entries.
func (e *Entity[T]) entry(entity *T) (Entry, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal entity: %w", err)
	}

	var indexes map[string][]string
	if len(e.indexes) > 0 {
		indexes = make(map[string][]string, len(e.indexes))
		for _, idx := range e.indexes {
			if keys := idx.keyGen(entity); len(keys) > 0 {
				indexes[idx.name] = keys
			}
		}
	}

	return Entry{Key: e.keyOf(entity), Value: data, Indexes: indexes}, nil
}

// Batch encodes entities for a multi-table Backend.Write.
func (e *Entity[T]) Batch(entities ...*T) (Batch, error) {
	entries := make([]Entry, 0, len(entities))
	for _, entity := range entities {
		entry, err := e.entry(entity)
		if err != nil {
			return Batch{}, err
		}
		entries = append(entries, entry)
	}
	return Batch{Table: e.table, Entries: entries}, nil
}

// Put upserts all entities in one backend transaction.
func (e *Entity[T]) Put(ctx context.Context, entities ...*T) error {
	b, err := e.Batch(entities...)
	if err != nil {
		return err
	}
	return e.backend.Put(ctx, e.table, b.Entries...)
}

// Get retrieves an entity by key.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Get(ctx context.Context, key string) (*T, error) {
	data, err := e.backend.Get(ctx, e.table, key)
	if err != nil {
		return nil, err
	}
	return decode[T](data)
}

// Exists reports whether an entity is stored under key.
func (e *Entity[T]) Exists(ctx context.Context, key string) (bool, error) {
	_, err := e.backend.Get(ctx, e.table, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetAllByIndex returns every entity whose index matches value.
// If the index has a lookup transform, it is applied to value first.
func (e *Entity[T]) GetAllByIndex(ctx context.Context, indexName, value string) ([]*T, error) {
	for _, idx := range e.indexes {
		if idx.name == indexName && idx.lookupTransform != nil {
			value = idx.lookupTransform(value)
			break
		}
	}

	data, err := e.backend.GetAllByIndex(ctx, e.table, indexName, value)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](data)
}

// GetRangeByIndex returns entities whose index value is in [lower, upper).
func (e *Entity[T]) GetRangeByIndex(ctx context.Context, indexName, lower, upper string) ([]*T, error) {
	data, err := e.backend.GetRangeByIndex(ctx, e.table, indexName, lower, upper)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](data)
}

// List returns an iterator over all entities in key order.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		data, err := e.backend.List(ctx, e.table)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, raw := range data {
			entity, err := decode[T](raw)
			if !yield(entity, err) || err != nil {
				return
			}
		}
	}
}

// Count returns the number of entities in the table.
func (e *Entity[T]) Count(ctx context.Context) (int, error) {
	data, err := e.backend.List(ctx, e.table)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func decode[T any](data []byte) (*T, error) {
	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return &entity, nil
}

func decodeAll[T any](data [][]byte) ([]*T, error) {
	out := make([]*T, 0, len(data))
	for _, raw := range data {
		entity, err := decode[T](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}
