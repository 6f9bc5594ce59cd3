package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck_Healthy(t *testing.T) {
	ts := setupTestServer(t)
	ts.seed(t, item("a", "u1", "Go", "article"))

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.Online)
	assert.Equal(t, "1 items, 0 offline-only", health.Components["cache"].Message)
	assert.Equal(t, "online", health.Components["connectivity"].Message)
}

func TestHealthCheck_NoRemote(t *testing.T) {
	ts := setupTestServer(t, withoutRemote())

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "healthy", health.Status)
	assert.False(t, health.Online)
	assert.Equal(t, "no remote configured", health.Components["connectivity"].Message)
}

func TestHealthCheck_CacheUnavailableDegrades(t *testing.T) {
	ts := setupTestServer(t, withBrokenStorage())

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unhealthy", health.Components["cache"].Status)
}
