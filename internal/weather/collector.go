package weather

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-monitor/internal/logging"
)

const (
	// DefaultFetchTimeout bounds a single provider fetch.
	DefaultFetchTimeout = 5 * time.Second
	// DefaultCacheTTL is how long a provider's reading stays valid.
	DefaultCacheTTL = 5 * time.Minute
)

// Fetch outcomes reported to the FetchRecorder.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeEmpty       = "empty"
	OutcomeUnparseable = "unparseable"
)

// ErrEmptyResponse is returned by fetchOne when a provider returns no text.
var ErrEmptyResponse = errors.New("empty provider response")

type contextKey string

const roundIDKey contextKey = "roundID"

// WithRoundID tags ctx with a round identifier used in log lines.
func WithRoundID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, roundIDKey, id)
}

func roundID(ctx context.Context) string {
	id, _ := ctx.Value(roundIDKey).(string)
	return id
}

// CollectorConfig tunes a Collector. Zero values select the defaults.
type CollectorConfig struct {
	FetchTimeout time.Duration
	CacheTTL     time.Duration
	Scorer       Scorer
	Recorder     FetchRecorder
	Logger       logrus.FieldLogger
}

// Collector fetches every enabled provider concurrently and turns the
// answers into scored readings.
type Collector struct {
	registry  *Registry
	extractor Extractor
	cache     Cache
	scorer    Scorer
	recorder  FetchRecorder
	logger    logrus.FieldLogger
	timeout   time.Duration
	ttl       time.Duration
	now       func() time.Time
}

// NewCollector creates a Collector.
func NewCollector(registry *Registry, extractor Extractor, cache Cache, cfg CollectorConfig) *Collector {
	c := &Collector{
		registry:  registry,
		extractor: extractor,
		cache:     cache,
		scorer:    cfg.Scorer,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
		timeout:   cfg.FetchTimeout,
		ttl:       cfg.CacheTTL,
		now:       time.Now,
	}
	if c.scorer == nil {
		c.scorer = HeuristicScorer{}
	}
	if c.recorder == nil {
		c.recorder = noopRecorder{}
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	if c.timeout <= 0 {
		c.timeout = DefaultFetchTimeout
	}
	if c.ttl <= 0 {
		c.ttl = DefaultCacheTTL
	}
	c.logger = c.logger.WithField("component", "collector")
	return c
}

// CollectRound queries every enabled provider and returns the valid
// readings, ordered by provider priority. Individual failures are logged
// and dropped; CollectRound itself never fails.
func (c *Collector) CollectRound(ctx context.Context) []Reading {
	providers := c.registry.Enabled()
	logger := c.logger.WithField("round", roundID(ctx))

	if len(providers) == 0 {
		logger.Warn("no enabled providers; nothing to collect")
		return nil
	}

	var (
		mu       sync.Mutex
		readings []Reading
		g        errgroup.Group
	)

	for _, d := range providers {
		g.Go(func() error {
			start := time.Now()
			r, outcome, err := c.fetchOne(ctx, d)
			elapsed := time.Since(start)
			c.recorder.ObserveFetch(d.Name, outcome, elapsed)

			entry := logger.WithFields(logrus.Fields{
				"provider": d.Name,
				"outcome":  outcome,
				"duration": elapsed.String(),
			})
			if outcome != OutcomeSuccess {
				// Partial success is the normal case; keep going.
				entry.WithError(err).Warn("provider fetch failed")
				return nil
			}
			entry.WithField("reliability", r.Reliability).Info("provider fetch succeeded")

			c.cache.Put(d.Name, r, c.ttl)

			mu.Lock()
			readings = append(readings, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	order := make(map[string]int, len(providers))
	for i, d := range providers {
		order[d.Name] = i
	}
	sort.Slice(readings, func(i, j int) bool {
		return order[readings[i].Source] < order[readings[j].Source]
	})

	logger.WithFields(logrus.Fields{
		"providers": len(providers),
		"readings":  len(readings),
	}).Info("collection round finished")
	return readings
}

// fetchOne runs one bounded extraction and normalizes the answer.
func (c *Collector) fetchOne(ctx context.Context, d ProviderDescriptor) (Reading, string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.extract(fetchCtx, d)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return Reading{}, OutcomeTimeout, err
		}
		return Reading{}, OutcomeError, err
	}
	if strings.TrimSpace(text) == "" {
		return Reading{}, OutcomeEmpty, ErrEmptyResponse
	}

	raw := RawResponse{Provider: d.Name, Text: text, FetchedAt: c.now()}
	reading, presence, ok := Normalize(raw, d)
	if !ok {
		return Reading{}, OutcomeUnparseable, errors.New("no valid reading in provider response")
	}
	reading.Reliability = c.scorer.Score(presence, d)
	return reading, OutcomeSuccess, nil
}

// extract calls the extractor but gives up as soon as ctx expires, so an
// extractor that ignores its context cannot hold up the round.
func (c *Collector) extract(ctx context.Context, d ProviderDescriptor) (string, error) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := c.extractor.Extract(ctx, d.Locator, d.Instruction)
		done <- result{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
