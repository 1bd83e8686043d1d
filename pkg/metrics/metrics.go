// Package metrics exposes Prometheus counters for the photo cache.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the cache-through retrieval metrics. It satisfies
// retrieval.Recorder.
type Metrics struct {
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	OriginFailures     prometheus.Counter
	StoreWriteFailures prometheus.Counter
	OriginFetchSeconds prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marsphotos_cache_hits_total",
			Help: "Searches answered from the cache store.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marsphotos_cache_misses_total",
			Help: "Searches that fell through to the NASA API.",
		}),
		OriginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marsphotos_origin_failures_total",
			Help: "Failed NASA API fetches.",
		}),
		StoreWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marsphotos_store_write_failures_total",
			Help: "Cache writes that failed after a successful origin fetch.",
		}),
		OriginFetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marsphotos_origin_fetch_duration_seconds",
			Help:    "Duration of NASA API fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
	if err := reg.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register retrieval metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) CacheHit()          { m.CacheHits.Inc() }
func (m *Metrics) CacheMiss()         { m.CacheMisses.Inc() }
func (m *Metrics) OriginFailure()     { m.OriginFailures.Inc() }
func (m *Metrics) StoreWriteFailure() { m.StoreWriteFailures.Inc() }

// ObserveOriginFetch records how long one origin call took.
func (m *Metrics) ObserveOriginFetch(d time.Duration) {
	m.OriginFetchSeconds.Observe(d.Seconds())
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.CacheHits
	ch <- m.CacheMisses
	ch <- m.OriginFailures
	ch <- m.StoreWriteFailures
	ch <- m.OriginFetchSeconds
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.CacheHits.Desc()
	ch <- m.CacheMisses.Desc()
	ch <- m.OriginFailures.Desc()
	ch <- m.StoreWriteFailures.Desc()
	ch <- m.OriginFetchSeconds.Desc()
}
