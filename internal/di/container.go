// Package di provides dependency injection configuration for the KeepStash daemon.
package di

import (
	"github.com/samber/do/v2"

	"github.com/keepstash/keepstash/internal/config"
	"github.com/keepstash/keepstash/internal/content"
	"github.com/keepstash/keepstash/internal/di/providers"
	"github.com/keepstash/keepstash/internal/logger"
	"github.com/keepstash/keepstash/internal/service"
	"github.com/keepstash/keepstash/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideCache)
	do.Provide(injector, providers.ProvideContentStore)

	// Remote
	do.Provide(injector, providers.ProvideRemote)
	do.Provide(injector, providers.ProvidePushLimiter)
	do.Provide(injector, providers.ProvideConnectivity)

	// Business services
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideOfflineService)
	do.Provide(injector, providers.ProvideSyncService)

	// Workers
	do.Provide(injector, providers.ProvideWorkers)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.CacheHandle](injector)
	_ = do.MustInvoke[*content.Store](injector)
	_ = do.MustInvoke[*providers.RemoteHandle](injector)
	_ = do.MustInvoke[*providers.PushLimiterHandle](injector)
	_ = do.MustInvoke[*providers.ConnectivityHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*service.OfflineService](injector)
	_ = do.MustInvoke[*providers.SyncServiceHandle](injector)

	// Load the configured user's cached items before serving.
	providers.HydrateWorkingSet(injector)

	// Server, then workers, so the UI can connect before the start-up sync emits.
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)
	_ = do.MustInvoke[*providers.Workers](injector)

	return nil
}
