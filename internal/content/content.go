// Package content holds the in-memory working set of saved items that search runs over.
package content

import (
	"sync"

	"github.com/keepstash/keepstash/internal/domain"
)

// Store is the current session's working set of saved items.
// The zero value is an empty store ready to use.
type Store struct {
	mu    sync.RWMutex
	items []domain.SavedItem
	byID  map[string]int
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// SetContent replaces the entire working set and rebuilds the id index.
// A duplicated id keeps the position of its first occurrence and the value of its last.
func (s *Store) SetContent(items []domain.SavedItem) {
	snapshot := make([]domain.SavedItem, 0, len(items))
	byID := make(map[string]int, len(items))
	for _, item := range items {
		if i, ok := byID[item.ID]; ok {
			snapshot[i] = item.Clone()
			continue
		}
		byID[item.ID] = len(snapshot)
		snapshot = append(snapshot, item.Clone())
	}

	s.mu.Lock()
	s.items = snapshot
	s.byID = byID
	s.mu.Unlock()
}

// View calls fn with the current snapshot under the read lock.
// fn must not retain or modify the slice.
func (s *Store) View(fn func(items []domain.SavedItem)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.items)
}

// Get returns the item with the given id.
func (s *Store) Get(id string) (domain.SavedItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return domain.SavedItem{}, false
	}
	return s.items[i].Clone(), true
}

// Items returns a copy of the snapshot in insertion order.
func (s *Store) Items() []domain.SavedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SavedItem, len(s.items))
	for i := range s.items {
		out[i] = s.items[i].Clone()
	}
	return out
}

// Len returns the number of items in the snapshot.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// AllTagNames returns every distinct tag name (by join key) in first-seen order.
func (s *Store) AllTagNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var names []string
	for _, item := range s.items {
		for _, t := range item.Tags {
			key := t.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			names = append(names, t.Name)
		}
	}
	return names
}
