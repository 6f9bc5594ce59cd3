package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/keepstash/keepstash/internal/config"
	"github.com/keepstash/keepstash/internal/logger"
	"github.com/keepstash/keepstash/internal/offline"
	"github.com/keepstash/keepstash/internal/sse"
)

// shutdownTimeout bounds each handle's graceful shutdown.
const shutdownTimeout = 30 * time.Second

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// CacheHandle wraps the offline cache with shutdown capability.
type CacheHandle struct {
	*offline.Cache
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideCache provides the offline cache. Storage that cannot be opened is
// not fatal: the daemon runs with offline features disabled.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	opener, err := offline.NewOpener(cfg.Storage, log.Component("store"))
	if err != nil {
		return nil, err
	}

	cache := offline.New(opener, offline.WithLogger(log.Component("cache")))
	if err := cache.Init(context.Background()); err != nil {
		log.Warn("Offline cache unavailable, continuing without it", "error", err)
	} else {
		log.Info("Offline cache initialized", "engine", cfg.Storage.Engine, "path", cfg.Storage.Path)
	}

	return &CacheHandle{Cache: cache}, nil
}
