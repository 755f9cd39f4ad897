package store

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/i474232898/weather-monitor/internal/weather"
)

// DefaultSize comfortably exceeds any realistic provider count, so the LRU
// bound never evicts a live provider's entry.
const DefaultSize = 64

var _ weather.Cache = (*MemoryStore)(nil)

// MemoryStore is a concurrency-safe in-memory cache of the latest reading
// per provider. Expiry is lazy: entries are checked at read time and
// expired ones are ignored, never removed.
type MemoryStore struct {
	// mu serializes BestValid scans against Put so a scan sees one state.
	mu      sync.RWMutex
	entries *lru.Cache
	now     func() time.Time
}

// NewMemoryStore creates a MemoryStore holding at most size entries.
// If size is <= 0, DefaultSize is used.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &MemoryStore{entries: entries, now: time.Now}, nil
}

// WithClock replaces the time source used for expiry checks.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Put stores reading under key until ttl elapses, replacing any previous entry.
func (s *MemoryStore) Put(key string, reading weather.Reading, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries.Add(key, weather.CacheEntry{
		Reading:   reading,
		ExpiresAt: s.now().Add(ttl),
	})
}

// Get returns the reading for key if it has not expired.
func (s *MemoryStore) Get(key string) (weather.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.peek(key)
	if !ok || !s.fresh(entry) {
		return weather.Reading{}, false
	}
	return entry.Reading, true
}

// Peek returns the entry for key whether or not it has expired.
func (s *MemoryStore) Peek(key string) (weather.CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.peek(key)
}

// BestValid returns the unexpired reading with the highest reliability.
// Ties go to the provider name that sorts first.
func (s *MemoryStore) BestValid() (weather.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  weather.Reading
		found bool
	)
	for _, k := range s.entries.Keys() {
		entry, ok := s.peek(k.(string))
		if !ok || !s.fresh(entry) {
			continue
		}
		r := entry.Reading
		if !found || r.Reliability > best.Reliability ||
			(r.Reliability == best.Reliability && r.Source < best.Source) {
			best = r
			found = true
		}
	}
	return best, found
}

// Len returns the number of entries, expired ones included.
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}

func (s *MemoryStore) peek(key string) (weather.CacheEntry, bool) {
	v, ok := s.entries.Peek(key)
	if !ok {
		return weather.CacheEntry{}, false
	}
	return v.(weather.CacheEntry), true
}

func (s *MemoryStore) fresh(entry weather.CacheEntry) bool {
	return s.now().Before(entry.ExpiresAt)
}
