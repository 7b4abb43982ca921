package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter",
		},
		[]string{"backend"}, // "redis", "memory"
	)

	// Store
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_store_errors_total",
			Help: "Document store operation failures by operation and kind",
		},
		[]string{"operation", "kind"},
	)

	UsageDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_usage_denied_total",
			Help: "Daily usage limit rejections by feature",
		},
		[]string{"feature"},
	)

	// Events
	EventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_events_recorded_total",
			Help: "Analytics and activity events persisted",
		},
		[]string{"stream"}, // "analytics", "activity"
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_events_dropped_total",
			Help: "Fire-and-forget events that were dropped or failed",
		},
		[]string{"stream", "reason"}, // reason: "queue_full", "write_failed"
	)

	// Upstream
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_upstream_duration_seconds",
			Help:    "Latency of calls to third-party services",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "outcome"},
	)
)
