package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepstash/keepstash/internal/domain"
	domainerrors "github.com/keepstash/keepstash/internal/errors"
	"github.com/keepstash/keepstash/internal/service"
)

func TestRunSync_FetchesAndPushes(t *testing.T) {
	ts := setupTestServer(t)
	ts.remote.FetchAllFn = func(_ context.Context, userID string) ([]domain.SavedItem, error) {
		return []domain.SavedItem{item("r1", userID, "From remote", "article", "go")}, nil
	}

	resp := ts.api.Post("/api/v1/users/u1/offline/contents", map[string]any{
		"id":           "local-1",
		"title":        "Saved on a plane",
		"content_type": "note",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Post("/api/v1/users/u1/sync", struct{}{})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	result := decode[service.CycleResult](t, resp.Body.Bytes())
	assert.Equal(t, "u1", result.UserID)
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 1, result.Pushed)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{"local-1"}, ts.remote.pushed)

	resp = ts.api.Get("/api/v1/users/u1/offline/contents?offline_only=true")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Zero(t, decode[OfflineContentsResponse](t, resp.Body.Bytes()).Total)

	resp = ts.api.Get("/api/v1/users/u1/sync")
	require.Equal(t, http.StatusOK, resp.Code)
	status := decode[service.SyncStatus](t, resp.Body.Bytes())
	assert.Equal(t, service.SyncStateIdle, status.State)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, result.CycleID, status.LastResult.CycleID)
}

func TestRunSync_RemoteFailure(t *testing.T) {
	ts := setupTestServer(t)
	ts.remote.FetchAllFn = func(context.Context, string) ([]domain.SavedItem, error) {
		return nil, domainerrors.Network(domainerrors.New("connection refused"), "fetch remote contents")
	}

	resp := ts.api.Post("/api/v1/users/u1/sync", struct{}{})
	require.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Equal(t, string(domainerrors.CodeNetwork), decode[APIError](t, resp.Body.Bytes()).Code)

	resp = ts.api.Get("/api/v1/users/u1/sync")
	require.Equal(t, http.StatusOK, resp.Code)
	status := decode[service.SyncStatus](t, resp.Body.Bytes())
	assert.Contains(t, status.LastError, "connection refused")
}

func TestGetSyncStatus_NeverSynced(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/users/u9/sync")
	require.Equal(t, http.StatusOK, resp.Code)

	status := decode[service.SyncStatus](t, resp.Body.Bytes())
	assert.Equal(t, "u9", status.UserID)
	assert.Equal(t, service.SyncStateIdle, status.State)
	assert.Nil(t, status.LastResult)
}

func TestSyncRoutes_NoRemote(t *testing.T) {
	ts := setupTestServer(t, withoutRemote())

	resp := ts.api.Post("/api/v1/users/u1/sync", struct{}{})
	require.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Equal(t, "no remote configured", decode[APIError](t, resp.Body.Bytes()).Message)

	resp = ts.api.Get("/api/v1/users/u1/sync")
	require.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestRunSync_RateLimitedPerClient(t *testing.T) {
	ts := setupTestServer(t)

	codes := make([]int, 0, triggerBurst+1)
	for range triggerBurst + 1 {
		codes = append(codes, ts.api.Post("/api/v1/users/u1/sync", struct{}{}).Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	last := ts.api.Post("/api/v1/users/u1/sync", struct{}{})
	require.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, codeRateLimited, decode[APIError](t, last.Body.Bytes()).Code)
}
