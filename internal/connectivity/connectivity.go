// Package connectivity tracks whether the remote backend is reachable and
// notifies subscribers when that changes.
package connectivity

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultProbeTimeout bounds a single health probe.
const DefaultProbeTimeout = 5 * time.Second

type subscriber struct {
	fn func(online bool)
	id int
}

// Manual is a connectivity signal whose state is set explicitly, by the UI
// through the HTTP API or by a Prober.
type Manual struct {
	subs   []subscriber
	mu     sync.Mutex
	nextID int
	online bool

	// notifyMu serializes Set so subscribers see transitions in order.
	notifyMu sync.Mutex
}

// NewManual creates a signal with the given initial state.
func NewManual(online bool) *Manual {
	return &Manual{online: online}
}

// Online reports the current state.
func (m *Manual) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set updates the state and notifies subscribers when it changed.
// It reports whether a transition happened.
func (m *Manual) Set(online bool) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	subs := slices.Clone(m.subs)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(online)
	}
	return true
}

// Subscribe registers fn for state transitions. The returned function
// removes the subscription; calling it more than once is harmless.
func (m *Manual) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	subID := m.nextID
	m.subs = append(m.subs, subscriber{id: subID, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.subs = slices.DeleteFunc(m.subs, func(s subscriber) bool { return s.id == subID })
	}
}

// Subscribers returns the number of active subscriptions.
func (m *Manual) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Pinger checks whether the remote is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober derives connectivity from periodic health checks against the remote.
// It starts offline; the first successful probe is an offline to online transition.
type Prober struct {
	*Manual
	pinger   Pinger
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewProber creates a prober polling pinger every interval.
func NewProber(pinger Pinger, interval time.Duration, logger *slog.Logger) *Prober {
	return &Prober{
		Manual:   NewManual(false),
		pinger:   pinger,
		logger:   logger,
		interval: interval,
		timeout:  DefaultProbeTimeout,
	}
}

// Probe runs one health check and records the result.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(ctx)
	online := err == nil
	if p.Set(online) {
		if online {
			p.logger.Info("remote reachable")
		} else {
			p.logger.Warn("remote unreachable", slog.String("error", err.Error()))
		}
	}
	return online
}

// Run probes immediately and then on every tick until ctx is done.
// Call it once in a goroutine.
func (p *Prober) Run(ctx context.Context) {
	p.logger.Info("connectivity prober starting", slog.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ticker.C:
			p.Probe(ctx)
		case <-ctx.Done():
			p.logger.Info("connectivity prober stopping")
			return
		}
	}
}
