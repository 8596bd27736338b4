package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registering the same collector twice panics, so Init goes through once.
	once sync.Once

	// HTTPRequestsTotal counts finished requests.
	//
	// route is the route pattern (/api/v1/sources/:name), never the raw path,
	// to keep label cardinality bounded.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// URLsBuiltTotal counts URLs produced by the API.
	// source is "default" for the env configured builder.
	URLsBuiltTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgix_urls_built_total",
			Help: "Total number of imgix URLs built.",
		},
		[]string{"source", "strategy", "signed"},
	)

	// ShardSelections counts which domain a source's builder picked.
	ShardSelections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgix_shard_selections_total",
			Help: "Domain selections per source and domain.",
		},
		[]string{"source", "domain"},
	)

	// CacheOperations tracks source lookups through the cache layers.
	//
	// layer: bloom / l1 / l2 / db
	// result: hit / miss / negative / error
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_cache_operations_total",
			Help: "Source cache lookups by layer and result.",
		},
		[]string{"layer", "result"},
	)

	// StatsEventsDropped counts build events discarded because the buffer was full.
	StatsEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_events_dropped_total",
			Help: "URL build events dropped by the collector.",
		},
	)
)

// Init registers all collectors with the default registry.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			HTTPInflightRequests,
			URLsBuiltTotal,
			ShardSelections,
			CacheOperations,
			StatsEventsDropped,
		)
	})
}
