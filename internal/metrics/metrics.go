// Package metrics declares the Prometheus collectors of the index and search paths.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Index metrics.
var (
	IndexWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caresearch",
			Name:      "index_writes_total",
			Help:      "Total number of index write operations",
		},
		[]string{"kind", "op", "status"}, // op: upsert / delete / rebuild
	)

	IndexWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "caresearch",
			Name:      "index_write_duration_seconds",
			Help:      "Index write duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 30},
		},
		[]string{"kind", "op"},
	)

	IndexDocuments = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "caresearch",
			Name:      "index_documents",
			Help:      "Documents in the index after the last rebuild",
		},
		[]string{"kind"},
	)
)

// Search metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caresearch",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"kind", "path", "status"}, // path: structured / fulltext
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "caresearch",
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind", "path"},
	)

	SearchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caresearch",
			Name:      "search_cache_total",
			Help:      "Full-text result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	HydrationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caresearch",
			Name:      "hydration_failures_total",
			Help:      "Appointment name lookups that failed and were left empty",
		},
		[]string{"relation"}, // patient / doctor
	)
)

var registered bool

// Register registers every collector with the default registry. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(IndexWritesTotal)
	prometheus.MustRegister(IndexWriteDuration)
	prometheus.MustRegister(IndexDocuments)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchCacheTotal)
	prometheus.MustRegister(HydrationFailuresTotal)
	registered = true
}

// Status maps an error to a status label.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
