package weather

import (
	"context"
	"time"
)

// Extractor pulls raw text for a provider. Given a locator and an
// extraction instruction it returns text that may or may not contain a
// parseable payload.
type Extractor interface {
	Extract(ctx context.Context, locator, instruction string) (string, error)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, locator, instruction string) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, locator, instruction string) (string, error) {
	return f(ctx, locator, instruction)
}

// Cache is the contract the reading cache must satisfy.
type Cache interface {
	Put(key string, reading Reading, ttl time.Duration)
	Get(key string) (Reading, bool)
	BestValid() (Reading, bool)
	Peek(key string) (CacheEntry, bool)
}

// FetchRecorder receives per-provider fetch outcomes. Implementations must
// be safe for concurrent use.
type FetchRecorder interface {
	ObserveFetch(provider, outcome string, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveFetch(string, string, time.Duration) {}
