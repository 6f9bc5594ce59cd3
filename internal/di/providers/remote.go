package providers

import (
	"github.com/samber/do/v2"

	"github.com/keepstash/keepstash/internal/config"
	"github.com/keepstash/keepstash/internal/logger"
	"github.com/keepstash/keepstash/internal/ratelimit"
	"github.com/keepstash/keepstash/internal/remote"
)

// RemoteHandle holds the remote client. Client and Source are nil when no
// remote is configured.
type RemoteHandle struct {
	Client *remote.Client
	Source remote.Source
}

// Configured reports whether a remote is configured.
func (h *RemoteHandle) Configured() bool {
	return h.Client != nil
}

// ProvideRemote provides the remote content API client.
func ProvideRemote(i do.Injector) (*RemoteHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.HasRemote() {
		log.Info("No remote configured, running offline only")
		return &RemoteHandle{}, nil
	}

	client := remote.NewClient(cfg.Remote.BaseURL,
		remote.WithAPIKey(cfg.Remote.APIKey),
		remote.WithTimeout(cfg.Remote.Timeout),
	)

	log.Info("Remote configured", "base_url", cfg.Remote.BaseURL, "timeout", cfg.Remote.Timeout)

	return &RemoteHandle{
		Client: client,
		Source: remote.NewLoggingSource(client, log.Component("remote")),
	}, nil
}

// PushLimiterHandle wraps the per-user push limiter with Shutdownable.
type PushLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *PushLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvidePushLimiter provides the limiter pacing pushes per user.
func ProvidePushLimiter(i do.Injector) (*PushLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &PushLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.Remote.PushRate, cfg.Remote.PushBurst),
	}, nil
}
