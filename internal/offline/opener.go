package offline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/keepstash/keepstash/internal/config"
	"github.com/keepstash/keepstash/internal/store"
	"github.com/keepstash/keepstash/internal/store/memory"
	"github.com/keepstash/keepstash/internal/store/sqlite"
)

// SQLiteFile is the database file name inside the storage directory.
const SQLiteFile = "keepstash.db"

// NewOpener returns the store.Opener for the configured engine. Nothing is
// opened until the cache calls it from Init.
func NewOpener(cfg config.StorageConfig, logger *slog.Logger) (store.Opener, error) {
	switch cfg.Engine {
	case config.EngineBadger, "":
		return func(context.Context) (store.Backend, error) {
			if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
				return nil, fmt.Errorf("create storage directory: %w", err)
			}
			return store.New(cfg.Path, logger)
		}, nil

	case config.EngineSQLite:
		return func(context.Context) (store.Backend, error) {
			if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
				return nil, fmt.Errorf("create storage directory: %w", err)
			}
			return sqlite.Open(filepath.Join(cfg.Path, SQLiteFile), logger)
		}, nil

	case config.EngineMemory:
		return memory.New().Opener(), nil

	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Engine)
	}
}
