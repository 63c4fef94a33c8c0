// Package store keeps the latest snapshot of every mounted view for
// readers outside the refresh loop.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Entry is the newest snapshot of one view. Body is its JSON encoding,
// produced once on Put. Entries are never mutated after publication.
type Entry struct {
	View       string
	Snapshot   any
	Body       []byte
	Generation uint64
	UpdatedAt  time.Time
}

// ViewStore is a concurrency-safe map from view name to its latest Entry.
// It tracks when data was last modified for staleness detection.
type ViewStore struct {
	mu          sync.RWMutex
	entries     map[string]*Entry
	generation  uint64
	lastUpdated atomic.Int64 // UnixMilli of last Put/Delete
	now         func() time.Time
}

// NewViewStore creates an empty ViewStore.
func NewViewStore() *ViewStore {
	s := &ViewStore{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
	s.lastUpdated.Store(s.now().UnixMilli())
	return s
}

// Put encodes snapshot and replaces the view's entry. The previous entry
// stays valid for readers already holding it.
func (s *ViewStore) Put(view string, snapshot any) (*Entry, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("store: encode view %q: %w", view, err)
	}
	now := s.now()

	s.mu.Lock()
	s.generation++
	e := &Entry{
		View:       view,
		Snapshot:   snapshot,
		Body:       body,
		Generation: s.generation,
		UpdatedAt:  now,
	}
	s.entries[view] = e
	s.mu.Unlock()

	s.lastUpdated.Store(now.UnixMilli())
	return e, nil
}

// Get returns the latest entry of view.
func (s *ViewStore) Get(view string) (*Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[view]
	s.mu.RUnlock()
	return e, ok
}

// Delete drops a view. No-op if absent.
func (s *ViewStore) Delete(view string) {
	s.mu.Lock()
	delete(s.entries, view)
	s.mu.Unlock()
	s.lastUpdated.Store(s.now().UnixMilli())
}

// Names returns the stored view names, sorted.
func (s *ViewStore) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Len returns the number of stored views.
func (s *ViewStore) Len() int {
	s.mu.RLock()
	n := len(s.entries)
	s.mu.RUnlock()
	return n
}

// LastUpdated returns the UnixMilli timestamp of the last modification.
func (s *ViewStore) LastUpdated() int64 {
	return s.lastUpdated.Load()
}

// Stale lists the views not updated within maxAge, sorted.
func (s *ViewStore) Stale(maxAge time.Duration) []string {
	cutoff := s.now().Add(-maxAge)
	s.mu.RLock()
	var stale []string
	for name, e := range s.entries {
		if e.UpdatedAt.Before(cutoff) {
			stale = append(stale, name)
		}
	}
	s.mu.RUnlock()
	sort.Strings(stale)
	return stale
}
