package providers

import (
	"context"
	"sync"

	"github.com/samber/do/v2"

	"github.com/keepstash/keepstash/internal/config"
	"github.com/keepstash/keepstash/internal/connectivity"
	"github.com/keepstash/keepstash/internal/logger"
	"github.com/keepstash/keepstash/internal/sse"
)

// ConnectivityHandle holds the connectivity prober. Prober is nil when no
// remote is configured.
type ConnectivityHandle struct {
	Prober *connectivity.Prober
	unsub  func()
}

// Shutdown implements do.Shutdownable.
func (h *ConnectivityHandle) Shutdown() error {
	if h.unsub != nil {
		h.unsub()
	}
	return nil
}

// ProvideConnectivity provides the connectivity prober and forwards its
// transitions to SSE clients. The prober is started by ProvideWorkers.
func ProvideConnectivity(i do.Injector) (*ConnectivityHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	remoteHandle := do.MustInvoke[*RemoteHandle](i)
	if !remoteHandle.Configured() {
		return &ConnectivityHandle{}, nil
	}

	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	prober := connectivity.NewProber(remoteHandle.Client, cfg.Sync.ProbeInterval, log.Component("connectivity"))
	unsub := prober.Subscribe(func(online bool) {
		sseHandle.Emit(sse.NewConnectivityEvent(online))
	})

	return &ConnectivityHandle{Prober: prober, unsub: unsub}, nil
}

// Workers runs the background loops: the connectivity prober and the
// reconnect watcher.
type Workers struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Shutdown implements do.Shutdownable. It stops the loops and waits for them.
func (w *Workers) Shutdown() error {
	w.cancel()
	w.wg.Wait()
	return nil
}

// ProvideWorkers starts the background loops.
//
// The first probe runs synchronously so the daemon knows its state before
// serving. A start-up sync runs if the remote is reachable; after that, cycles
// start on every reconnect when Sync.Watch is on.
func ProvideWorkers(i do.Injector) (*Workers, error) {
	cfg := do.MustInvoke[*config.Config](i)
	connHandle := do.MustInvoke[*ConnectivityHandle](i)
	syncHandle := do.MustInvoke[*SyncServiceHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	w := &Workers{cancel: cancel}

	prober := connHandle.Prober
	if prober == nil {
		return w, nil
	}

	online := prober.Probe(ctx)
	userID := cfg.Sync.UserID
	svc := syncHandle.Service

	if userID != "" && svc != nil {
		if cfg.Sync.Watch {
			// Subscribe before Run so the first reconnect is not missed.
			w.wg.Go(svc.StartWatch(ctx, prober, userID))
		}
		if online {
			w.wg.Go(func() {
				if _, err := svc.Sync(ctx, userID); err != nil && ctx.Err() == nil {
					log.Warn("Start-up sync failed", "user_id", userID, "error", err)
				}
			})
		}
	} else {
		log.Info("Sync watcher disabled", "user_configured", userID != "", "watch", cfg.Sync.Watch)
	}

	w.wg.Go(func() { prober.Run(ctx) })

	return w, nil
}
