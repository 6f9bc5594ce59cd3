package api

import "github.com/keepstash/keepstash/internal/service"

// Services groups the business logic used by the API server.
type Services struct {
	Search  *service.SearchService
	Offline *service.OfflineService
	Sync    *service.SyncService // nil when no remote is configured
}
