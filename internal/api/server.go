// Package api is the HTTP surface the KeepStash web UI talks to.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/keepstash/keepstash/internal/ratelimit"
	"github.com/keepstash/keepstash/internal/sse"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Connectivity is the signal the UI reads and overrides.
type Connectivity interface {
	Online() bool
	Set(online bool) bool
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services     *Services
	connectivity Connectivity
	sseManager   *sse.Manager
	router       chi.Router
	api          huma.API
	logger       *slog.Logger

	triggerLimiter *ratelimit.KeyedRateLimiter
}

// NewServer creates the HTTP server with all routes registered.
// allowedOrigins lists the browser origins allowed by CORS.
func NewServer(services *Services, connectivity Connectivity, sseManager *sse.Manager, allowedOrigins []string, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	humaConfig := huma.DefaultConfig("KeepStash API", Version)
	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		services:     services,
		connectivity: connectivity,
		sseManager:   sseManager,
		router:       router,
		api:          api,
		logger:       logger,

		triggerLimiter: newTriggerLimiter(),
	}

	s.registerHealthRoutes()
	s.registerSearchRoutes()
	s.registerOfflineRoutes()
	s.registerSyncRoutes()
	s.registerConnectivityRoutes()

	if sseManager != nil {
		router.Get("/api/v1/events", sse.NewHandler(sseManager, logger).ServeHTTP)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the server's background resources. It does not stop
// in-flight requests; http.Server.Shutdown does that.
func (s *Server) Close() {
	s.triggerLimiter.Stop()
}

// API exposes the huma API, e.g. to dump the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}
