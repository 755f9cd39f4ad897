// Package monitor drives periodic collection rounds and owns the current
// aggregated reading.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/i474232898/weather-monitor/internal/logging"
	"github.com/i474232898/weather-monitor/internal/weather"
)

// DefaultInterval is the pause between collection rounds.
const DefaultInterval = 2 * time.Minute

// roundBudget bounds a whole round on top of the per-fetch timeouts.
const roundBudget = time.Minute

// Collector runs one collection round.
type Collector interface {
	CollectRound(ctx context.Context) []weather.Reading
}

// Aggregator merges one round's readings.
type Aggregator interface {
	Aggregate(readings []weather.Reading) weather.AggregatedReading
}

// RoundRecorder observes finished rounds.
type RoundRecorder interface {
	ObserveRound(r weather.AggregatedReading, d time.Duration)
}

// Config wires a Monitor. Registry, Collector, Aggregator and Cache are required.
type Config struct {
	Registry   *weather.Registry
	Collector  Collector
	Aggregator Aggregator
	Cache      weather.Cache
	Interval   time.Duration
	Recorder   RoundRecorder
	Logger     logrus.FieldLogger
}

// Monitor periodically collects, aggregates and publishes weather readings.
type Monitor struct {
	registry   *weather.Registry
	collector  Collector
	aggregator Aggregator
	cache      weather.Cache
	interval   time.Duration
	recorder   RoundRecorder
	logger     logrus.FieldLogger

	// runMu guards the scheduler lifecycle.
	runMu     sync.Mutex
	scheduler *gocron.Scheduler

	// roundMu serializes rounds so results land in start order.
	roundMu sync.Mutex

	// publishMu orders replays against publishes so no subscriber sees an
	// older reading after a newer one.
	publishMu sync.Mutex

	currentMu  sync.RWMutex
	current    weather.AggregatedReading
	hasCurrent bool

	subsMu      sync.Mutex
	subscribers map[int]func(weather.AggregatedReading)
	nextSubID   int
}

// New creates a stopped Monitor.
func New(cfg Config) (*Monitor, error) {
	if cfg.Registry == nil || cfg.Collector == nil || cfg.Aggregator == nil || cfg.Cache == nil {
		return nil, fmt.Errorf("monitor: registry, collector, aggregator and cache are required")
	}

	m := &Monitor{
		registry:    cfg.Registry,
		collector:   cfg.Collector,
		aggregator:  cfg.Aggregator,
		cache:       cfg.Cache,
		interval:    cfg.Interval,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger,
		subscribers: make(map[int]func(weather.AggregatedReading)),
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	if m.logger == nil {
		m.logger = logging.Discard()
	}
	m.logger = m.logger.WithField("component", "monitor")
	return m, nil
}

// Start runs one round immediately and then one every interval. Calling
// Start on a running Monitor does nothing.
func (m *Monitor) Start() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.scheduler != nil {
		return nil
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(m.interval).StartImmediately().Do(m.tick); err != nil {
		return fmt.Errorf("schedule collection round: %w", err)
	}
	s.StartAsync()

	m.scheduler = s
	m.logger.WithField("interval", m.interval.String()).Info("monitor started")
	return nil
}

// Stop prevents future rounds. A round already in flight is left to
// finish and may still populate the cache. Calling Stop on a stopped
// Monitor does nothing.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.scheduler == nil {
		return
	}
	m.scheduler.Stop()
	m.scheduler = nil
	m.logger.Info("monitor stopped")
}

// Running reports whether the periodic loop is active.
func (m *Monitor) Running() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.scheduler != nil
}

func (m *Monitor) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), roundBudget)
	defer cancel()
	m.RunRound(ctx)
}

// RunRound performs one collection round, stores its result as the current
// reading and notifies subscribers. Rounds never overlap.
func (m *Monitor) RunRound(ctx context.Context) weather.AggregatedReading {
	m.roundMu.Lock()
	defer m.roundMu.Unlock()

	id := uuid.NewString()
	start := time.Now()
	logger := m.logger.WithField("round", id)
	logger.Debug("collection round started")

	readings := m.collector.CollectRound(weather.WithRoundID(ctx, id))
	result := m.aggregator.Aggregate(readings)
	elapsed := time.Since(start)

	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	m.currentMu.Lock()
	m.current = result
	m.hasCurrent = true
	m.currentMu.Unlock()

	if m.recorder != nil {
		m.recorder.ObserveRound(result, elapsed)
	}
	logger.WithFields(logrus.Fields{
		"origin":      result.Origin,
		"source":      result.Source,
		"reliability": result.Reliability,
		"duration":    elapsed.String(),
	}).Info("collection round published")

	m.publish(result)
	return result
}

// Refresh forces an immediate round outside the schedule.
func (m *Monitor) Refresh(ctx context.Context) weather.AggregatedReading {
	return m.RunRound(ctx)
}

// Current returns the latest aggregated reading. Before the first round
// has finished it is derived from the cache or the fallback reading.
func (m *Monitor) Current() weather.AggregatedReading {
	m.currentMu.RLock()
	current, ok := m.current, m.hasCurrent
	m.currentMu.RUnlock()

	if ok {
		return current
	}
	return m.aggregator.Aggregate(nil)
}

// ToggleProvider enables or disables a provider from the next round on.
func (m *Monitor) ToggleProvider(name string, enabled bool) error {
	if err := m.registry.Toggle(name, enabled); err != nil {
		return err
	}
	m.logger.WithFields(logrus.Fields{
		"provider": name,
		"enabled":  enabled,
	}).Info("provider toggled")
	return nil
}

// Status reports every provider's enabled flag and its last cached reading.
func (m *Monitor) Status() []weather.SourceStatus {
	providers := m.registry.All()
	out := make([]weather.SourceStatus, 0, len(providers))
	now := time.Now()

	for _, d := range providers {
		st := weather.SourceStatus{
			Name:    d.Name,
			Enabled: d.Enabled,
		}
		if entry, ok := m.cache.Peek(d.Name); ok {
			ts := entry.Reading.Timestamp
			st.LastUpdate = &ts
			st.Reliability = entry.Reading.Reliability
			st.Fresh = now.Before(entry.ExpiresAt)
		}
		out = append(out, st)
	}
	return out
}

// Subscribe registers fn to receive every published reading. If a reading
// has already been published, fn receives it immediately. The returned
// function removes the subscription. fn must not call Subscribe.
func (m *Monitor) Subscribe(fn func(weather.AggregatedReading)) func() {
	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	m.subsMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.subsMu.Unlock()

	m.currentMu.RLock()
	current, ok := m.current, m.hasCurrent
	m.currentMu.RUnlock()
	if ok {
		m.deliver(fn, current)
	}

	return func() {
		m.subsMu.Lock()
		delete(m.subscribers, id)
		m.subsMu.Unlock()
	}
}

func (m *Monitor) publish(r weather.AggregatedReading) {
	m.subsMu.Lock()
	subs := make([]func(weather.AggregatedReading), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.subsMu.Unlock()

	for _, fn := range subs {
		m.deliver(fn, r)
	}
}

func (m *Monitor) deliver(fn func(weather.AggregatedReading), r weather.AggregatedReading) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.WithField("panic", p).Error("subscriber panicked")
		}
	}()
	fn(r)
}
