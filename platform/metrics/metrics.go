// Package metrics declares the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "servitec"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests handled"},
		[]string{"method", "route", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RequestTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "request_transitions_total", Help: "Lifecycle actions by outcome"},
		[]string{"action", "result"},
	)
	MatchesScored = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "matches_scored_total", Help: "Matches produced by a scoring pass"},
		[]string{"strategy"},
	)
	WatchdogActions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "watchdog_actions_total", Help: "Timeout transitions issued"},
		[]string{"action", "source"},
	)
	GeocoderLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "geocoder_lookups_total", Help: "Address resolutions by result"},
		[]string{"result"},
	)
)

func ObserveHTTP(method, route, status string, latency time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(latency.Seconds())
}
