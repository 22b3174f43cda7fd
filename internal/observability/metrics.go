// Package observability declares the Prometheus collectors shared by the engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "myride"

var (
	// StaleResponses counts async responses dropped by request fencing, by kind
	// ("suggestions" or "route").
	StaleResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "stale_responses_total", Help: "Responses discarded because their request was superseded"},
		[]string{"kind"},
	)
	LookupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "lookup_failures_total", Help: "Failed geocoding or routing lookups"},
		[]string{"kind"},
	)
	LookupLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_latency_seconds",
			Help:      "Latency of geocoding and routing lookups",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind", "provider"},
	)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "lookup_cache_hits_total", Help: "Lookups served from the redis cache"},
		[]string{"kind"},
	)
	FeedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "feed_events_total", Help: "Change-feed events by reconciliation outcome"},
		[]string{"outcome"},
	)
	RideTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_transitions_total", Help: "Ride status transitions requested by this client"},
		[]string{"event", "result"},
	)
	PaymentHandoffs = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "payment_handoffs_total", Help: "Payment session creations"},
		[]string{"result"},
	)
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "booking_sessions_active", Help: "Open booking sessions"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
