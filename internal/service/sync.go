package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/keepstash/keepstash/internal/domain"
	"github.com/keepstash/keepstash/internal/errors"
	"github.com/keepstash/keepstash/internal/id"
	"github.com/keepstash/keepstash/internal/offline"
	"github.com/keepstash/keepstash/internal/ratelimit"
	"github.com/keepstash/keepstash/internal/sse"
)

// DefaultRemoteTimeout bounds each fetch and each push.
const DefaultRemoteTimeout = 30 * time.Second

// ErrSyncStopped is returned by Sync once Drain has been called.
var ErrSyncStopped = errors.Unavailable(errors.New("sync service stopped"))

// RemoteSource is the authoritative store of saved items.
type RemoteSource interface {
	FetchAll(ctx context.Context, userID string) ([]domain.SavedItem, error)
	Push(ctx context.Context, item domain.SavedItem) error
}

// ConnectivitySignal reports whether the remote is reachable.
type ConnectivitySignal interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// ContentRefresher reloads the in-memory working set after the cache changed.
type ContentRefresher interface {
	Refresh(ctx context.Context, userID string) error
}

// EventEmitter publishes events to connected UI clients.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter drops every event.
type NoopEmitter struct{}

// Emit does nothing.
func (NoopEmitter) Emit(any) {}

// SyncState is the phase of a user's reconciliation cycle.
type SyncState string

// Cycle phases, in order.
const (
	SyncStateIdle     SyncState = "idle"
	SyncStateFetching SyncState = "fetching"
	SyncStateMerging  SyncState = "merging"
	SyncStatePushing  SyncState = "pushing"
)

// CycleResult summarizes one finished reconciliation cycle.
type CycleResult struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	CycleID    string    `json:"cycle_id"`
	UserID     string    `json:"user_id"`
	// Failed lists the ids of offline-only records whose push failed; they stay offline-only.
	Failed  []string `json:"failed"`
	Fetched int      `json:"fetched"`
	Pushed  int      `json:"pushed"`
}

// SyncStatus is the observable reconciliation state of one user.
type SyncStatus struct {
	LastResult *CycleResult `json:"last_result,omitempty"`
	UserID     string       `json:"user_id"`
	State      SyncState    `json:"state"`
	CycleID    string       `json:"cycle_id,omitempty"`
	LastError  string       `json:"last_error,omitempty"`
}

// SyncOption configures a SyncService.
type SyncOption func(*SyncService)

// WithFetchTimeout bounds FetchAll.
func WithFetchTimeout(d time.Duration) SyncOption {
	return func(s *SyncService) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithPushTimeout bounds each Push.
func WithPushTimeout(d time.Duration) SyncOption {
	return func(s *SyncService) {
		if d > 0 {
			s.pushTimeout = d
		}
	}
}

// WithPushLimiter paces pushes per user.
func WithPushLimiter(l *ratelimit.KeyedRateLimiter) SyncOption {
	return func(s *SyncService) {
		s.limiter = l
	}
}

// WithRefresher registers the working set to reload after every cycle.
func WithRefresher(r ContentRefresher) SyncOption {
	return func(s *SyncService) {
		s.refresher = r
	}
}

// WithEmitter sets where progress events go.
func WithEmitter(e EventEmitter) SyncOption {
	return func(s *SyncService) {
		s.emitter = e
	}
}

// SyncService reconciles the offline cache with the remote: fetch everything,
// merge it into the cache, then push records created while disconnected.
//
// At most one cycle runs per user. A trigger arriving while a cycle is in
// flight joins that cycle and gets its result.
type SyncService struct {
	cache     *offline.Cache
	remote    RemoteSource
	refresher ContentRefresher
	emitter   EventEmitter
	limiter   *ratelimit.KeyedRateLimiter
	logger    *slog.Logger

	group    singleflight.Group
	inflight sync.WaitGroup

	mu      sync.Mutex
	status  map[string]*SyncStatus
	closing bool

	fetchTimeout time.Duration
	pushTimeout  time.Duration
}

// NewSyncService creates a new sync service.
func NewSyncService(cache *offline.Cache, remote RemoteSource, logger *slog.Logger, opts ...SyncOption) *SyncService {
	s := &SyncService{
		cache:        cache,
		remote:       remote,
		emitter:      NoopEmitter{},
		logger:       logger,
		status:       make(map[string]*SyncStatus),
		fetchTimeout: DefaultRemoteTimeout,
		pushTimeout:  DefaultRemoteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs a reconciliation cycle for userID, or joins the one in flight.
//
// The cycle itself is detached from ctx: a caller giving up does not abort
// the cycle for other joiners. A failed fetch aborts the cycle and leaves the
// cache untouched; individual push failures are reported in the result.
func (s *SyncService) Sync(ctx context.Context, userID string) (*CycleResult, error) {
	if userID == "" {
		return nil, errors.Validation("user id is required")
	}

	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(userID, func() (any, error) {
		s.mu.Lock()
		if s.closing {
			s.mu.Unlock()
			return nil, ErrSyncStopped
		}
		s.inflight.Add(1)
		s.mu.Unlock()
		defer s.inflight.Done()

		return s.runCycle(detached, userID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*CycleResult), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Watch starts a cycle for userID on every offline to online transition of
// signal until ctx is done. It blocks; run it in a goroutine, or use
// StartWatch when the subscription must exist before the caller goes on.
func (s *SyncService) Watch(ctx context.Context, signal ConnectivitySignal, userID string) {
	s.StartWatch(ctx, signal, userID)()
}

// StartWatch subscribes to signal before returning, so no transition after
// the call is missed. The returned wait blocks until ctx is done, then
// unsubscribes and waits for cycles the watch started.
func (s *SyncService) StartWatch(ctx context.Context, signal ConnectivitySignal, userID string) (wait func()) {
	var (
		mu      sync.Mutex
		stopped bool
		wg      sync.WaitGroup
	)

	unsubscribe := signal.Subscribe(func(online bool) {
		if !online {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		wg.Go(func() {
			s.logger.Info("connectivity restored, starting sync", "user_id", userID)
			if _, err := s.Sync(ctx, userID); err != nil && ctx.Err() == nil {
				s.logger.Warn("sync after reconnect failed", "user_id", userID, "error", err)
			}
		})
	})
	s.logger.Info("watching connectivity", "user_id", userID)

	return func() {
		<-ctx.Done()

		unsubscribe()
		mu.Lock()
		stopped = true
		mu.Unlock()
		wg.Wait()
	}
}

// Status returns the reconciliation state of userID.
func (s *SyncService) Status(userID string) SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.status[userID]
	if !ok {
		return SyncStatus{UserID: userID, State: SyncStateIdle}
	}
	return *st
}

// Drain refuses new cycles and waits for running ones to finish.
func (s *SyncService) Drain(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SyncService) runCycle(ctx context.Context, userID string) (*CycleResult, error) {
	result := &CycleResult{
		CycleID:   id.NewCycleID(),
		UserID:    userID,
		StartedAt: time.Now(),
		Failed:    []string{},
	}
	log := s.logger.With("user_id", userID, "cycle_id", result.CycleID)
	log.Info("sync cycle started")

	s.setState(userID, result.CycleID, SyncStateFetching)
	items, err := s.fetch(ctx, userID)
	if err != nil {
		return nil, s.fail(log, result, err)
	}
	result.Fetched = len(items)

	s.setState(userID, result.CycleID, SyncStateMerging)
	if err := s.merge(ctx, items); err != nil {
		return nil, s.fail(log, result, err)
	}

	s.setState(userID, result.CycleID, SyncStatePushing)
	if err := s.push(ctx, log, userID, result); err != nil {
		return nil, s.fail(log, result, err)
	}

	if s.refresher != nil {
		if err := s.refresher.Refresh(ctx, userID); err != nil {
			log.Warn("content refresh after sync failed", "error", err)
		}
	}

	result.FinishedAt = time.Now()
	s.finish(result, nil)
	s.emitter.Emit(sse.NewSyncCompletedEvent(sse.SyncCompletedEventData{
		UserID:     userID,
		CycleID:    result.CycleID,
		Fetched:    result.Fetched,
		Pushed:     result.Pushed,
		Failed:     result.Failed,
		DurationMS: result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}))

	log.Info("sync cycle completed",
		"fetched", result.Fetched,
		"pushed", result.Pushed,
		"failed", len(result.Failed),
		"duration", result.FinishedAt.Sub(result.StartedAt))
	return result, nil
}

func (s *SyncService) fetch(ctx context.Context, userID string) ([]domain.SavedItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	items, err := s.remote.FetchAll(ctx, userID)
	if err != nil {
		var domainErr *errors.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, errors.Network(err, "fetch remote contents")
	}

	for i := range items {
		if items[i].UserID == "" {
			items[i].UserID = userID
		}
	}
	return items, nil
}

func (s *SyncService) merge(ctx context.Context, items []domain.SavedItem) error {
	return s.cache.Merge(ctx, items)
}

// push sends every offline-only record of userID. A failed push leaves the
// record offline-only for the next cycle; only cache errors abort.
func (s *SyncService) push(ctx context.Context, log *slog.Logger, userID string, result *CycleResult) error {
	pending, err := s.cache.GetOfflineOnlyContents(ctx, userID)
	if err != nil {
		return err
	}

	for _, r := range pending {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx, userID); err != nil {
				result.Failed = append(result.Failed, r.ID)
				continue
			}
		}

		if err := s.pushOne(ctx, r.SavedItem); err != nil {
			log.Warn("push failed, record stays offline-only", "item_id", r.ID, "error", err)
			result.Failed = append(result.Failed, r.ID)
			continue
		}

		if err := s.cache.MarkContentSynced(ctx, r.ID); err != nil {
			log.Error("mark content synced failed", "item_id", r.ID, "error", err)
			result.Failed = append(result.Failed, r.ID)
			continue
		}
		result.Pushed++
	}
	return nil
}

func (s *SyncService) pushOne(ctx context.Context, item domain.SavedItem) error {
	ctx, cancel := context.WithTimeout(ctx, s.pushTimeout)
	defer cancel()
	return s.remote.Push(ctx, item)
}

func (s *SyncService) fail(log *slog.Logger, result *CycleResult, err error) error {
	log.Error("sync cycle failed", "error", err)
	s.finish(result, err)
	s.emitter.Emit(sse.NewSyncFailedEvent(sse.SyncFailedEventData{
		UserID:  result.UserID,
		CycleID: result.CycleID,
		Code:    string(errors.CodeOf(err)),
		Error:   err.Error(),
	}))
	return err
}

func (s *SyncService) setState(userID, cycleID string, state SyncState) {
	s.mu.Lock()
	st := s.statusLocked(userID)
	st.State = state
	st.CycleID = cycleID
	s.mu.Unlock()

	s.emitter.Emit(sse.NewSyncStateEvent(userID, cycleID, string(state)))
}

func (s *SyncService) finish(result *CycleResult, err error) {
	s.mu.Lock()
	st := s.statusLocked(result.UserID)
	st.State = SyncStateIdle
	st.CycleID = ""
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
		st.LastResult = result
	}
	s.mu.Unlock()

	s.emitter.Emit(sse.NewSyncStateEvent(result.UserID, result.CycleID, string(SyncStateIdle)))
}

func (s *SyncService) statusLocked(userID string) *SyncStatus {
	st, ok := s.status[userID]
	if !ok {
		st = &SyncStatus{UserID: userID, State: SyncStateIdle}
		s.status[userID] = st
	}
	return st
}
