package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/weather-monitor/internal/weather"
)

const namespace = "weather_monitor"

var _ weather.FetchRecorder = (*Metrics)(nil)

// Metrics bundles the Prometheus collectors for the collection pipeline.
type Metrics struct {
	Fetches      *prometheus.CounterVec
	FetchLatency *prometheus.HistogramVec
	RoundLatency prometheus.Histogram
	Rounds       *prometheus.CounterVec
	Reliability  prometheus.Gauge
	Contributors prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fetches_total",
			Help:      "Provider fetch attempts by outcome.",
		}, []string{"provider", "outcome"}),
		FetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_fetch_duration_seconds",
			Help:      "Provider fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		RoundLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Duration of a full collection round.",
			Buckets:   prometheus.DefBuckets,
		}),
		Rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Collection rounds by origin of the published reading.",
		}, []string{"origin"}),
		Reliability: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aggregated_reliability",
			Help:      "Reliability of the current aggregated reading.",
		}),
		Contributors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aggregated_contributors",
			Help:      "Providers contributing to the current aggregated reading.",
		}),
	}

	reg.MustRegister(m.Fetches, m.FetchLatency, m.RoundLatency, m.Rounds, m.Reliability, m.Contributors)
	return m
}

// ObserveFetch records one provider fetch.
func (m *Metrics) ObserveFetch(provider, outcome string, d time.Duration) {
	m.Fetches.WithLabelValues(provider, outcome).Inc()
	m.FetchLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveRound records a finished round and the reading it published.
func (m *Metrics) ObserveRound(r weather.AggregatedReading, d time.Duration) {
	m.RoundLatency.Observe(d.Seconds())
	m.Rounds.WithLabelValues(string(r.Origin)).Inc()
	m.Reliability.Set(float64(r.Reliability))
	m.Contributors.Set(float64(len(r.Sources)))
}
