package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

// Store is the Badger-backed Backend.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	closed atomic.Bool
}

var _ Backend = (*Store)(nil)

// New opens (or creates) a Badger database in the given directory.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Cached content must survive a crash
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	return open(opts, logger)
}

// NewInMemory opens a Badger database that lives only in memory.
func NewInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", opts.Dir, "in_memory", opts.InMemory)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, table, key string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	k := buildKey(table, key)
	defer releaseKey(k)

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put upserts entries and their index entries in one transaction.
func (s *Store) Put(ctx context.Context, table string, entries ...Entry) error {
	return s.Write(ctx, Batch{Table: table, Entries: entries})
}

// Write upserts every batch in one transaction.
func (s *Store) Write(ctx context.Context, batches ...Batch) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	batches, err := ValidateBatches(batches)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		return nil
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, b := range batches {
			for _, e := range b.Entries {
				if err := s.putEntry(txn, b.Table, e); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("write %d batches: %w", len(batches), err)
	}
	return err
}

func (s *Store) putEntry(txn *badger.Txn, table string, e Entry) error {
	rk := buildReverseKey(table, e.Key)
	defer releaseKey(rk)

	// Drop the index entries written by the previous version of this record.
	item, err := txn.Get(rk)
	switch {
	case err == nil:
		var old map[string][]string
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &old)
		}); err != nil {
			return fmt.Errorf("failed to unmarshal old indexes: %w", err)
		}
		for index, values := range old {
			for _, v := range values {
				// Delete keeps a reference to the key until commit, so no pooled buffer here.
				if err := txn.Delete(indexKey(table, index, v, e.Key)); err != nil {
					return fmt.Errorf("failed to delete old index key: %w", err)
				}
			}
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return fmt.Errorf("failed to get old indexes: %w", err)
	}

	if err := txn.Set([]byte(table+":"+e.Key), e.Value); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	for index, values := range e.Indexes {
		for _, v := range values {
			if err := txn.Set(indexKey(table, index, v, e.Key), []byte(e.Key)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}

	rev, err := json.Marshal(e.Indexes)
	if err != nil {
		return fmt.Errorf("failed to marshal indexes: %w", err)
	}
	if err := txn.Set(bytes.Clone(rk), rev); err != nil {
		return fmt.Errorf("failed to set reverse index: %w", err)
	}
	return nil
}

// indexKey builds an unpooled index key for use inside write transactions.
func indexKey(table, index, value, key string) []byte {
	k := buildIndexKey(table, index, value, key)
	defer releaseKey(k)
	return bytes.Clone(k)
}

// GetAllByIndex returns all values indexed under value.
func (s *Store) GetAllByIndex(ctx context.Context, table, index, value string) ([][]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	prefix := buildIndexValuePrefix(table, index, value)
	defer releaseKey(prefix)

	return s.scanIndex(ctx, table, prefix, prefix, nil, "")
}

// GetRangeByIndex returns values whose index value is in [lower, upper).
func (s *Store) GetRangeByIndex(ctx context.Context, table, index, lower, upper string) ([][]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	prefix := buildIndexPrefix(table, index)
	defer releaseKey(prefix)

	seek := append(bytes.Clone(prefix), lower...)
	return s.scanIndex(ctx, table, prefix, seek, prefix, upper)
}

// scanIndex iterates index entries under prefix starting at seek and resolves
// them to their records. When upper is set, iteration stops at the first entry
// whose value (parsed against valuePrefix) is >= upper.
func (s *Store) scanIndex(ctx context.Context, table string, prefix, seek, valuePrefix []byte, upper string) ([][]byte, error) {
	var values [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			if upper != "" {
				v, ok := indexValue(it.Item().Key(), valuePrefix)
				if ok && v >= upper {
					break
				}
			}

			var key []byte
			if err := it.Item().Value(func(val []byte) error {
				key = append(key, val...)
				return nil
			}); err != nil {
				return err
			}

			item, err := txn.Get([]byte(table + ":" + string(key)))
			if errors.Is(err, badger.ErrKeyNotFound) {
				// Dangling index entry; the record itself is the source of truth.
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to resolve index entry: %w", err)
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// List returns every value of the table in key order.
func (s *Store) List(ctx context.Context, table string) ([][]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	prefix := []byte(table + ":")
	var values [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Clear drops every key in the database.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("failed to drop all keys: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("Badger database cleared")
	}
	return nil
}
