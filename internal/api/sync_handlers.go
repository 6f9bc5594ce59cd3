package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/keepstash/keepstash/internal/errors"
	"github.com/keepstash/keepstash/internal/service"
)

func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "runSync",
		Method:      http.MethodPost,
		Path:        "/api/v1/users/{userID}/sync",
		Summary:     "Run a sync cycle",
		Description: "Fetches from the remote, merges into the cache and pushes offline-only items. Joins a cycle already in flight.",
		Tags:        []string{"Sync"},
		Middlewares: huma.Middlewares{s.rateLimited(s.triggerLimiter)},
	}, s.handleRunSync)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSyncStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/sync",
		Summary:     "Sync status",
		Description: "Returns the current phase and the last cycle result",
		Tags:        []string{"Sync"},
	}, s.handleGetSyncStatus)
}

// CycleResultOutput wraps a finished cycle for Huma.
type CycleResultOutput struct {
	Body service.CycleResult
}

// SyncStatusOutput wraps the sync status for Huma.
type SyncStatusOutput struct {
	Body service.SyncStatus
}

var errNoRemote = domainerrors.Network(nil, "no remote configured")

func (s *Server) handleRunSync(ctx context.Context, input *UserPathInput) (*CycleResultOutput, error) {
	if s.services.Sync == nil {
		return nil, errNoRemote
	}
	result, err := s.services.Sync.Sync(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	return &CycleResultOutput{Body: *result}, nil
}

func (s *Server) handleGetSyncStatus(_ context.Context, input *UserPathInput) (*SyncStatusOutput, error) {
	if s.services.Sync == nil {
		return nil, errNoRemote
	}
	return &SyncStatusOutput{Body: s.services.Sync.Status(input.UserID)}, nil
}
