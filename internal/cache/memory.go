package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval is how often expired in-memory entries are purged.
const DefaultCleanupInterval = 10 * time.Minute

// MemoryStore is a process-local Store. Capacity is unbounded; entries are
// dropped only when they expire.
type MemoryStore struct {
	items *gocache.Cache
}

// NewMemoryStore creates an in-memory store that purges expired entries
// every cleanupInterval (DefaultCleanupInterval if non-positive).
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &MemoryStore{
		items: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	return data, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.items.Set(key, value, ttl)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (s *MemoryStore) Len() int {
	return s.items.ItemCount()
}
