package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// APILatency covers the handler body, cache lookup included.
	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "macropull",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of series endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "macropull",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by endpoint and kind",
		},
		[]string{"endpoint", "kind"},
	)

	CacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "macropull",
			Subsystem: "api",
			Name:      "cache_results_total",
			Help:      "Response cache outcomes (HIT, STALE, MISS)",
		},
		[]string{"endpoint", "result"},
	)

	ChartSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "macropull",
			Subsystem: "chart",
			Name:      "sessions",
			Help:      "Open chart websocket sessions",
		},
	)
)

// Register adds the API collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, CacheResults, ChartSessions)
	})
}
