package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/keepstash/keepstash/internal/api"
	"github.com/keepstash/keepstash/internal/config"
	"github.com/keepstash/keepstash/internal/logger"
	"github.com/keepstash/keepstash/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	handler *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.handler.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	connHandle := do.MustInvoke[*ConnectivityHandle](i)
	syncHandle := do.MustInvoke[*SyncServiceHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Search:  do.MustInvoke[*service.SearchService](i),
		Offline: do.MustInvoke[*service.OfflineService](i),
		Sync:    syncHandle.Service,
	}

	// A nil *Prober must not become a non-nil interface.
	var conn api.Connectivity
	if connHandle.Prober != nil {
		conn = connHandle.Prober
	}

	handler := api.NewServer(services, conn, sseHandle.Manager, cfg.Server.AllowedOrigins, log.Component("http"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv, handler: handler}, nil
}
