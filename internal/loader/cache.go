package loader

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kubeglass/kubeglass-backend/internal/models"
	"github.com/kubeglass/kubeglass-backend/internal/pkg/metrics"
)

const defaultCacheCapacity = 256

type cacheEntry struct {
	items    []*models.Record
	storedAt time.Time
	ttl      time.Duration
}

// Store is the loader's result cache: (resourceType, cacheKey) to an
// immutable item snapshot with its store time. Freshness is decided at read
// time against the caller's max age, which is what makes degraded stale
// reads possible — the same entry that misses a TTL read can still satisfy a
// fallback read with a larger bound. An LRU capacity cap keeps the cache
// from growing without bound. Thread-safe.
type Store struct {
	mu       sync.Mutex
	capacity int
	entries  *lru.Cache[string, cacheEntry]
}

// CacheStats summarizes cache occupancy for introspection endpoints.
type CacheStats struct {
	Entries       int            `json:"entries"`
	Capacity      int            `json:"capacity"`
	ItemsByType   map[string]int `json:"items_by_type"`
	EntriesByType map[string]int `json:"entries_by_type"`
}

// NewStore creates a result cache bounded to capacity entries (LRU eviction).
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	entries, _ := lru.New[string, cacheEntry](capacity)
	return &Store{capacity: capacity, entries: entries}
}

func storeKey(resourceType, cacheKey string) string {
	return resourceType + "|" + cacheKey
}

// Get returns the cached items if the entry exists and is no older than
// maxAge. A miss is silent; expired entries stay in place for stale reads.
func (s *Store) Get(resourceType, cacheKey string, maxAge time.Duration) ([]*models.Record, bool) {
	s.mu.Lock()
	e, ok := s.entries.Get(storeKey(resourceType, cacheKey))
	s.mu.Unlock()
	if !ok || time.Since(e.storedAt) > maxAge {
		metrics.CacheMissesTotal.WithLabelValues(resourceType).Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.WithLabelValues(resourceType).Inc()
	return e.items, true
}

// Put stores items for the key, overwriting any existing entry. ttl is the
// entry's own freshness window, consulted by Optimize.
func (s *Store) Put(resourceType, cacheKey string, items []*models.Record, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Add(storeKey(resourceType, cacheKey), cacheEntry{
		items:    items,
		storedAt: time.Now(),
		ttl:      ttl,
	})
}

// Clear drops every entry for a resource type. Returns the number removed.
func (s *Store) Clear(resourceType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := resourceType + "|"
	removed := 0
	for _, k := range s.entries.Keys() {
		if strings.HasPrefix(k, prefix) {
			s.entries.Remove(k)
			removed++
		}
	}
	return removed
}

// Optimize drops entries that have outlived their own TTL plus the stale
// grace window, keeping warm entries intact. Used for the global cache pass
// instead of a blind wipe.
func (s *Store) Optimize(staleGrace time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, k := range s.entries.Keys() {
		if e, ok := s.entries.Peek(k); ok {
			if time.Since(e.storedAt) > e.ttl+staleGrace {
				s.entries.Remove(k)
				removed++
			}
		}
	}
	return removed
}

// Stats reports entry and item counts, grouped by resource type.
func (s *Store) Stats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := CacheStats{
		Capacity:      s.capacity,
		ItemsByType:   make(map[string]int),
		EntriesByType: make(map[string]int),
	}
	for _, k := range s.entries.Keys() {
		e, ok := s.entries.Peek(k)
		if !ok {
			continue
		}
		resourceType, _, found := strings.Cut(k, "|")
		if !found {
			continue
		}
		stats.Entries++
		stats.EntriesByType[resourceType]++
		stats.ItemsByType[resourceType] += len(e.items)
	}
	return stats
}
