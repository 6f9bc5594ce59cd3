package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/keepstash/keepstash/internal/config"
	"github.com/keepstash/keepstash/internal/content"
	"github.com/keepstash/keepstash/internal/logger"
	"github.com/keepstash/keepstash/internal/service"
)

// ProvideContentStore provides the in-memory working set.
func ProvideContentStore(i do.Injector) (*content.Store, error) {
	return content.New(), nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	store := do.MustInvoke[*content.Store](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(cacheHandle.Cache, store, log.Component("search")), nil
}

// HydrateWorkingSet loads the configured user's cached items so search works
// before the first sync. Should be called after all services are wired.
func HydrateWorkingSet(i do.Injector) {
	cfg := do.MustInvoke[*config.Config](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Sync.UserID == "" {
		log.Info("No user configured, working set stays empty until the UI searches with a user_id")
		return
	}
	if !cacheHandle.Available() {
		return
	}

	if err := searchService.Load(context.Background(), cfg.Sync.UserID); err != nil {
		log.Error("Failed to hydrate working set", "user_id", cfg.Sync.UserID, "error", err)
	}
}
