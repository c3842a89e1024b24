// Package metrics holds the Prometheus collectors exported by
// riskwatch-server on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Risk pipeline metrics
	ReadingsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_readings_processed_total",
			Help: "Sensor readings scored, by resulting risk level",
		},
		[]string{"level"},
	)

	ReadingsFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riskwatch_readings_failed_total",
			Help: "Sensor readings whose processing failed on alert history access",
		},
	)

	AlertEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_alert_events_total",
			Help: "Debounce decisions, by outcome (recorded, suppressed)",
		},
		[]string{"outcome"},
	)

	ProcessDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskwatch_process_duration_seconds",
			Help:    "Time taken to score, gate and persist one reading",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// Notification metrics
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_publish_total",
			Help: "Real-time notifications attempted, by sink and status",
		},
		[]string{"sink", "status"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskwatch_websocket_clients",
			Help: "Currently connected dashboard WebSocket clients",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
