package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// Component and overall statuses.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns daemon health with component checks. Missing offline storage degrades the daemon but does not stop it.",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy or degraded"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
	Online     bool                       `json:"online" doc:"Whether the remote is reachable"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"cache":        s.checkCache(ctx),
		"search":       s.checkSearch(),
		"connectivity": s.checkConnectivity(),
		"sse":          s.checkSSEManager(),
	}

	overall := statusHealthy
	for _, c := range components {
		if c.Status != statusHealthy {
			overall = statusDegraded
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
			Online:     s.connectivity != nil && s.connectivity.Online(),
		},
	}, nil
}

// checkCache reports whether offline storage is open and readable.
func (s *Server) checkCache(ctx context.Context) ComponentHealth {
	if s.services == nil || s.services.Offline == nil {
		return ComponentHealth{Status: statusDegraded, Message: "offline cache not configured"}
	}
	if !s.services.Offline.Available() {
		return ComponentHealth{Status: statusUnhealthy, Message: "offline storage unavailable, offline features disabled"}
	}

	start := time.Now()
	stats, err := s.services.Offline.Stats(ctx)
	latency := time.Since(start)
	if err != nil {
		return ComponentHealth{Status: statusUnhealthy, Latency: latency.String(), Message: "cache read failed"}
	}

	return ComponentHealth{
		Status:  statusHealthy,
		Latency: latency.String(),
		Message: fmt.Sprintf("%d items, %d offline-only", stats.Contents, stats.OfflineOnly),
	}
}

func (s *Server) checkSearch() ComponentHealth {
	if s.services == nil || s.services.Search == nil {
		return ComponentHealth{Status: statusDegraded, Message: "search service not configured"}
	}
	user := s.services.Search.ActiveUser()
	if user == "" {
		return ComponentHealth{Status: statusHealthy, Message: "no working set loaded"}
	}
	return ComponentHealth{
		Status:  statusHealthy,
		Message: fmt.Sprintf("%d items loaded for %s", s.services.Search.Size(), user),
	}
}

// checkConnectivity is informational: being offline is a normal state.
func (s *Server) checkConnectivity() ComponentHealth {
	if s.connectivity == nil {
		return ComponentHealth{Status: statusHealthy, Message: "no remote configured"}
	}
	if s.connectivity.Online() {
		return ComponentHealth{Status: statusHealthy, Message: "online"}
	}
	return ComponentHealth{Status: statusHealthy, Message: "offline"}
}

func (s *Server) checkSSEManager() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{Status: statusDegraded, Message: "SSE manager not configured"}
	}
	return ComponentHealth{
		Status:  statusHealthy,
		Message: formatSSEStatus(s.sseManager.ClientCount()),
	}
}

func formatSSEStatus(count int) string {
	switch count {
	case 0:
		return "no connected clients"
	case 1:
		return "1 connected client"
	default:
		return fmt.Sprintf("%d connected clients", count)
	}
}
