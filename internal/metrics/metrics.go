package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coldtrace_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coldtrace_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Monitor metrics
	MonitorTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coldtrace_monitor_ticks_total",
			Help: "Total number of monitoring ticks executed",
		},
	)

	MonitorTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coldtrace_monitor_tick_duration_seconds",
			Help:    "Time taken to evaluate all active shipments in one tick",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	ShipmentsEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coldtrace_shipments_evaluated_total",
			Help: "Total number of shipment evaluations performed",
		},
	)

	BreachesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coldtrace_breaches_detected_total",
			Help: "Total number of breach verdicts by type and severity",
		},
		[]string{"type", "severity"},
	)

	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coldtrace_alerts_created_total",
			Help: "Total number of alerts persisted",
		},
		[]string{"severity"},
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coldtrace_alerts_suppressed_total",
			Help: "Total number of breach verdicts suppressed by deduplication",
		},
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coldtrace_persistence_failures_total",
			Help: "Total number of failed database writes",
		},
		[]string{"operation"},
	)

	// Realtime publish metrics
	RealtimePublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coldtrace_realtime_publish_total",
			Help: "Total number of realtime events published",
		},
		[]string{"event", "status"}, // status: success, failed
	)

	// Kafka producer metrics
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coldtrace_kafka_publish_total",
			Help: "Total number of alert events published to Kafka",
		},
		[]string{"status"}, // status: success, failed
	)

	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coldtrace_kafka_publish_duration_seconds",
			Help:    "Time taken to publish an alert event to Kafka",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	KafkaBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coldtrace_kafka_bytes_written_total",
			Help: "Total bytes written to Kafka",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coldtrace_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
