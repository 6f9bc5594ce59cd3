package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/keepstash/keepstash/internal/config"
	"github.com/keepstash/keepstash/internal/logger"
	"github.com/keepstash/keepstash/internal/service"
	"github.com/keepstash/keepstash/internal/validation"
)

// ProvideValidator provides the struct validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideOfflineService provides the offline service.
func ProvideOfflineService(i do.Injector) (*service.OfflineService, error) {
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewOfflineService(cacheHandle.Cache, validator, searchService, sseHandle.Manager, log.Component("offline")), nil
}

// SyncServiceHandle wraps the sync service with Shutdownable. Service is nil
// when no remote is configured.
type SyncServiceHandle struct {
	Service *service.SyncService
}

// Shutdown implements do.Shutdownable. It waits for the running cycle.
func (h *SyncServiceHandle) Shutdown() error {
	if h.Service == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Service.Drain(ctx)
}

// ProvideSyncService provides the reconciler.
func ProvideSyncService(i do.Injector) (*SyncServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	remoteHandle := do.MustInvoke[*RemoteHandle](i)
	if !remoteHandle.Configured() {
		return &SyncServiceHandle{}, nil
	}

	cacheHandle := do.MustInvoke[*CacheHandle](i)
	limiter := do.MustInvoke[*PushLimiterHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewSyncService(cacheHandle.Cache, remoteHandle.Source, log.Component("sync"),
		service.WithFetchTimeout(cfg.Remote.Timeout),
		service.WithPushTimeout(cfg.Remote.Timeout),
		service.WithPushLimiter(limiter.KeyedRateLimiter),
		service.WithRefresher(searchService),
		service.WithEmitter(sseHandle.Manager),
	)
	return &SyncServiceHandle{Service: svc}, nil
}
