package weather

import (
	"sync"
	"time"
)

// fakeCache is a minimal Cache that never expires entries on its own.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
	expired map[string]bool
	puts    []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]CacheEntry{}, expired: map[string]bool{}}
}

func (c *fakeCache) Put(key string, r Reading, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = CacheEntry{Reading: r, ExpiresAt: fetchedAt.Add(ttl)}
	c.puts = append(c.puts, key)
}

func (c *fakeCache) Get(key string) (Reading, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.expired[key] {
		return Reading{}, false
	}
	return e.Reading, true
}

func (c *fakeCache) BestValid() (Reading, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var (
		best  Reading
		found bool
	)
	for k, e := range c.entries {
		if c.expired[k] {
			continue
		}
		if !found || e.Reading.Reliability > best.Reliability {
			best, found = e.Reading, true
		}
	}
	return best, found
}

func (c *fakeCache) Peek(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *fakeCache) putKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.puts...)
}

type fetchCall struct {
	provider string
	outcome  string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []fetchCall
}

func (r *fakeRecorder) ObserveFetch(provider, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fetchCall{provider: provider, outcome: outcome})
}

func (r *fakeRecorder) outcomes() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.calls))
	for _, c := range r.calls {
		out[c.provider] = c.outcome
	}
	return out
}
