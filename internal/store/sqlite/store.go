// Package sqlite implements store.Backend on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/keepstash/keepstash/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store is the SQLite-backed Backend.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
	closed atomic.Bool
}

var _ store.Backend = (*Store)(nil)

// Open creates a new SQLite store at the given path.
// It configures WAL mode, sets pragmas, and runs schema migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Pragmas are per connection, so keep a single one. It also gives us the
	// single-writer discipline SQLite wants.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	if logger != nil {
		logger.Info("SQLite database opened successfully", "path", path)
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, table, key string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE tbl = ? AND key = ?`, table, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, key, err)
	}
	return value, nil
}

// Put upserts entries and replaces their index rows in one transaction.
func (s *Store) Put(ctx context.Context, table string, entries ...store.Entry) error {
	return s.Write(ctx, store.Batch{Table: table, Entries: entries})
}

// Write upserts every batch in one transaction.
func (s *Store) Write(ctx context.Context, batches ...store.Batch) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	batches, err := store.ValidateBatches(batches)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO kv (tbl, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (tbl, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer upsert.Close()

	clearIdx, err := tx.PrepareContext(ctx, `DELETE FROM kv_index WHERE tbl = ? AND key = ?`)
	if err != nil {
		return fmt.Errorf("prepare index delete: %w", err)
	}
	defer clearIdx.Close()

	insertIdx, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO kv_index (tbl, idx, value, key) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare index insert: %w", err)
	}
	defer insertIdx.Close()

	updatedAt := formatTime(s.now())
	for _, b := range batches {
		for _, e := range b.Entries {
			if _, err := upsert.ExecContext(ctx, b.Table, e.Key, e.Value, updatedAt); err != nil {
				return fmt.Errorf("upsert %s/%s: %w", b.Table, e.Key, err)
			}
			if _, err := clearIdx.ExecContext(ctx, b.Table, e.Key); err != nil {
				return fmt.Errorf("clear indexes of %s/%s: %w", b.Table, e.Key, err)
			}
			for index, values := range e.Indexes {
				for _, v := range values {
					if _, err := insertIdx.ExecContext(ctx, b.Table, index, v, e.Key); err != nil {
						return fmt.Errorf("index %s/%s %s=%q: %w", b.Table, e.Key, index, v, err)
					}
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetAllByIndex returns values indexed under value in key order.
func (s *Store) GetAllByIndex(ctx context.Context, table, index, value string) ([][]byte, error) {
	return s.queryValues(ctx, `
		SELECT kv.value FROM kv_index
		JOIN kv ON kv.tbl = kv_index.tbl AND kv.key = kv_index.key
		WHERE kv_index.tbl = ? AND kv_index.idx = ? AND kv_index.value = ?
		ORDER BY kv_index.key`,
		table, index, value)
}

// GetRangeByIndex returns values whose index value is in [lower, upper).
func (s *Store) GetRangeByIndex(ctx context.Context, table, index, lower, upper string) ([][]byte, error) {
	if upper == "" {
		return s.queryValues(ctx, `
			SELECT kv.value FROM kv_index
			JOIN kv ON kv.tbl = kv_index.tbl AND kv.key = kv_index.key
			WHERE kv_index.tbl = ? AND kv_index.idx = ? AND kv_index.value >= ?
			ORDER BY kv_index.value, kv_index.key`,
			table, index, lower)
	}
	return s.queryValues(ctx, `
		SELECT kv.value FROM kv_index
		JOIN kv ON kv.tbl = kv_index.tbl AND kv.key = kv_index.key
		WHERE kv_index.tbl = ? AND kv_index.idx = ? AND kv_index.value >= ? AND kv_index.value < ?
		ORDER BY kv_index.value, kv_index.key`,
		table, index, lower, upper)
}

// List returns every value of the table in key order.
func (s *Store) List(ctx context.Context, table string) ([][]byte, error) {
	return s.queryValues(ctx, `SELECT value FROM kv WHERE tbl = ? ORDER BY key`, table)
}

// Clear deletes every row. Index rows go with them through the cascade.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, stmt := range []string{`DELETE FROM kv_index`, `DELETE FROM kv`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("SQLite database cleared")
	}
	return nil
}

func (s *Store) queryValues(ctx context.Context, query string, args ...any) ([][]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var values [][]byte
	for rows.Next() {
		var value []byte
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		values = append(values, value)
	}
	return values, rows.Err()
}

// formatTime formats a time.Time to RFC3339Nano for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
