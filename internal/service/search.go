package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/keepstash/keepstash/internal/content"
	"github.com/keepstash/keepstash/internal/domain"
	"github.com/keepstash/keepstash/internal/offline"
	"github.com/keepstash/keepstash/internal/search"
)

// SearchService owns the in-memory working set and the engine searching it.
// The working set belongs to one active user at a time.
type SearchService struct {
	cache   *offline.Cache
	content *content.Store
	engine  *search.Engine
	logger  *slog.Logger

	mu         sync.RWMutex
	activeUser string
}

// NewSearchService creates a new search service over an empty working set.
func NewSearchService(cache *offline.Cache, store *content.Store, logger *slog.Logger) *SearchService {
	return &SearchService{
		cache:   cache,
		content: store,
		engine:  search.NewEngine(store),
		logger:  logger,
	}
}

// Search runs query over the working set. It never fails; bad input yields
// an empty page.
func (s *SearchService) Search(query string, filters search.Filters, opts search.Options) search.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Search(query, filters, opts)
}

// SearchAs runs query over userID's records, loading them first when another
// user is active. The load and the search see the same working set. An empty
// userID searches the active user's records.
func (s *SearchService) SearchAs(ctx context.Context, userID, query string, filters search.Filters, opts search.Options) (search.Result, error) {
	s.mu.RLock()
	if userID == "" || userID == s.activeUser {
		defer s.mu.RUnlock()
		return s.engine.Search(query, filters, opts), nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if userID != s.activeUser {
		if err := s.loadLocked(ctx, userID); err != nil {
			return search.Result{}, err
		}
	}
	return s.engine.Search(query, filters, opts), nil
}

// Load replaces the working set with userID's cached records and makes
// userID the active user.
func (s *SearchService) Load(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, userID)
}

// loadLocked requires s.mu held for writing.
func (s *SearchService) loadLocked(ctx context.Context, userID string) error {
	records, err := s.cache.GetOfflineContents(ctx, userID)
	if err != nil {
		return err
	}
	s.content.SetContent(domain.Items(records))
	s.activeUser = userID

	s.logger.Info("working set loaded", "user_id", userID, "items", len(records))
	return nil
}

// Refresh reloads the working set if userID is the active user. An empty
// userID refreshes whoever is active. Refreshing before any Load is a no-op.
func (s *SearchService) Refresh(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeUser == "" {
		return nil
	}
	if userID != "" && userID != s.activeUser {
		return nil
	}
	return s.loadLocked(ctx, s.activeUser)
}

// ActiveUser returns the user whose records are loaded, or "" before any Load.
func (s *SearchService) ActiveUser() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeUser
}

// Size returns the number of items in the working set.
func (s *SearchService) Size() int {
	return s.content.Len()
}

// TagNames returns the distinct tag names of the working set.
func (s *SearchService) TagNames() []string {
	return s.content.AllTagNames()
}
