// Package extract provides an HTTP implementation of weather.Extractor.
//
// Pages are fetched with retries behind a per-host circuit breaker and a
// shared rate limit. JSON bodies are returned untouched; HTML pages are
// reduced to text with goquery, embedded JSON scripts first, so the
// normalizer can find a payload in them.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-monitor/internal/weather"
)

// selectorPrefix marks an instruction that names a CSS selector.
const selectorPrefix = "css:"

// maxBodyBytes caps how much of a page is read.
const maxBodyBytes = 2 << 20

const userAgent = "Mozilla/5.0 (compatible; weather-monitor/1.0)"

var _ weather.Extractor = (*HTTPExtractor)(nil)

// Config tunes an HTTPExtractor.
type Config struct {
	Client    *http.Client
	RateLimit float64 // requests per second across all providers
	Burst     int
	Backoff   BackoffConfig
}

// HTTPExtractor fetches provider pages over HTTP.
type HTTPExtractor struct {
	client  *http.Client
	limiter *rate.Limiter
	backoff BackoffConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewHTTPExtractor creates an HTTPExtractor. Zero config values select defaults.
func NewHTTPExtractor(cfg Config) *HTTPExtractor {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.Backoff.InitialInterval <= 0 {
		cfg.Backoff = DefaultBackoff()
	}

	return &HTTPExtractor{
		client:   cfg.Client,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		backoff:  cfg.Backoff,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Extract fetches locator and returns text likely to contain the data the
// instruction asks for. An instruction of the form "css:<selector>" limits
// the HTML text to the matching elements.
func (e *HTTPExtractor) Extract(ctx context.Context, locator, instruction string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid locator %q", locator)
	}

	resp, err := e.fetch(ctx, u.Host, locator)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("read body: %w", err)
		}
		return string(data), nil
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return pageText(doc, instruction), nil
}

// pageText collects embedded JSON documents followed by the visible text
// the instruction points at.
func pageText(doc *goquery.Document, instruction string) string {
	var parts []string

	doc.Find(`script[type="application/json"], script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	selector := "body"
	if sel, ok := strings.CutPrefix(strings.TrimSpace(instruction), selectorPrefix); ok && strings.TrimSpace(sel) != "" {
		selector = strings.TrimSpace(sel)
	}

	content := doc.Find(selector).Clone()
	content.Find("script, style, noscript").Remove()
	if text := strings.Join(strings.Fields(content.Text()), " "); text != "" {
		parts = append(parts, text)
	}

	return strings.Join(parts, "\n")
}

// breaker returns the circuit breaker for host, creating it on first use.
func (e *HTTPExtractor) breaker(host string) *gobreaker.CircuitBreaker {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	e.breakers[host] = cb
	return cb
}
