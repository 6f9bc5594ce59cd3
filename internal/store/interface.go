// Package store defines the key-value persistence interface behind the offline cache
// and its Badger implementation.
//
// A Backend holds named tables of opaque values keyed by string. Each value may
// carry secondary index entries (index name -> values) that are maintained by the
// backend and replaced wholesale on every upsert.
package store

import "context"

// Backend is the minimal key-value engine the offline cache runs on.
// Implementations: Badger (this package), sqlite.Store and memory.Store.
type Backend interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, table, key string) ([]byte, error)

	// Put upserts every entry in a single transaction: either all entries
	// are written or none are. Index entries of an existing key are replaced.
	Put(ctx context.Context, table string, entries ...Entry) error

	// Write upserts the entries of every batch in a single transaction,
	// across tables. Put is Write with one batch.
	Write(ctx context.Context, batches ...Batch) error

	// GetAllByIndex returns the values whose index entry equals value, in key order.
	GetAllByIndex(ctx context.Context, table, index, value string) ([][]byte, error)

	// GetRangeByIndex returns the values whose index entry v satisfies
	// lower <= v < upper, ordered by v then key. An empty upper is unbounded.
	GetRangeByIndex(ctx context.Context, table, index, lower, upper string) ([][]byte, error)

	// List returns every value of the table in key order.
	List(ctx context.Context, table string) ([][]byte, error)

	// Clear removes every table, value and index entry.
	Clear(ctx context.Context) error

	Close() error
}

// Entry is one record written by Backend.Put.
type Entry struct {
	Key     string
	Value   []byte
	Indexes map[string][]string
}

// Batch groups the entries written to one table by Backend.Write.
type Batch struct {
	Table   string
	Entries []Entry
}

// Opener opens a Backend. The offline cache calls it from Init.
type Opener func(ctx context.Context) (Backend, error)
