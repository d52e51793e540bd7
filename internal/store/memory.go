package store

import (
	"context"
	"sync"

	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

var _ weather.Store = (*MemoryStore)(nil)

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	// writeMu serializes Put so notifications are delivered in commit order.
	writeMu sync.Mutex

	mu       sync.RWMutex
	snapshot weather.Snapshot

	subs *listeners
}

// NewMemoryStore creates a MemoryStore holding the unknown snapshot.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshot: weather.Unknown(),
		subs:     newListeners(),
	}
}

// Get returns the last committed snapshot.
func (s *MemoryStore) Get(_ context.Context) (weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, nil
}

// Put replaces the snapshot and notifies subscribers before returning.
func (s *MemoryStore) Put(_ context.Context, snap weather.Snapshot) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	s.subs.notify(snap)
	return nil
}

// Subscribe registers l for change notifications.
func (s *MemoryStore) Subscribe(l weather.Listener) weather.Subscription {
	return s.subs.add(l)
}

// Unsubscribe removes a listener. Unknown handles are ignored.
func (s *MemoryStore) Unsubscribe(sub weather.Subscription) {
	s.subs.remove(sub)
}
