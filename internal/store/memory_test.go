package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-monitor/internal/weather"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*MemoryStore, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)}
	s, err := NewMemoryStore(0)
	require.NoError(t, err)
	return s.WithClock(clk.Now), clk
}

func reading(source string, reliability int) weather.Reading {
	return weather.Reading{Source: source, Reliability: reliability}
}

func TestPutAndGet(t *testing.T) {
	s, _ := newTestStore(t)

	s.Put("alpha", reading("alpha", 60), time.Minute)

	got, ok := s.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, 60, got.Reliability)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestPutReplaces(t *testing.T) {
	s, _ := newTestStore(t)

	s.Put("alpha", reading("alpha", 60), time.Minute)
	s.Put("alpha", reading("alpha", 75), time.Minute)

	got, ok := s.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, 75, got.Reliability)
	assert.Equal(t, 1, s.Len())
}

func TestExpiryIsLazy(t *testing.T) {
	s, clk := newTestStore(t)
	s.Put("alpha", reading("alpha", 60), time.Minute)

	clk.Advance(59 * time.Second)
	_, ok := s.Get("alpha")
	assert.True(t, ok)

	clk.Advance(time.Second)
	_, ok = s.Get("alpha")
	assert.False(t, ok, "entry must expire exactly at its deadline")

	// Expired entries are kept and still visible through Peek.
	assert.Equal(t, 1, s.Len())
	entry, ok := s.Peek("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", entry.Reading.Source)
	assert.Equal(t, time.Date(2026, 10, 14, 12, 1, 0, 0, time.UTC), entry.ExpiresAt)
}

func TestBestValid(t *testing.T) {
	s, clk := newTestStore(t)

	_, ok := s.BestValid()
	assert.False(t, ok)

	s.Put("low", reading("low", 40), time.Hour)
	s.Put("high", reading("high", 70), time.Minute)

	best, ok := s.BestValid()
	require.True(t, ok)
	assert.Equal(t, "high", best.Source)

	clk.Advance(2 * time.Minute)
	best, ok = s.BestValid()
	require.True(t, ok)
	assert.Equal(t, "low", best.Source)

	clk.Advance(time.Hour)
	_, ok = s.BestValid()
	assert.False(t, ok)
}

func TestBestValidTieBreaksOnName(t *testing.T) {
	s, _ := newTestStore(t)

	s.Put("zulu", reading("zulu", 50), time.Minute)
	s.Put("alpha", reading("alpha", 50), time.Minute)
	s.Put("mike", reading("mike", 50), time.Minute)

	best, ok := s.BestValid()
	require.True(t, ok)
	assert.Equal(t, "alpha", best.Source)
}

func TestConcurrentAccess(t *testing.T) {
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a' + i))
			for j := 0; j < 100; j++ {
				s.Put(name, reading(name, j), time.Minute)
				s.Get(name)
				s.BestValid()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16, s.Len())
	best, ok := s.BestValid()
	require.True(t, ok)
	assert.Equal(t, 99, best.Reliability)
	assert.Equal(t, "a", best.Source)
}
