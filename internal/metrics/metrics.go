// Package metrics exposes Prometheus instrumentation for the central
// system, grounded on the teacher gateway's internal/metrics/metrics.go and
// extended with the gauges/counters this domain's components need.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks Sessions whose Run loop is currently executing.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "centralsystem_active_sessions",
		Help: "The number of currently active station Sessions.",
	})

	// InFlightCalls tracks outbound operator Calls awaiting a response.
	InFlightCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "centralsystem_inflight_calls",
		Help: "Outbound Calls currently awaiting a CallResult/CallError.",
	})

	// MessagesReceived counts inbound frames by OCPP Action.
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "centralsystem_messages_received_total",
		Help: "Total number of inbound OCPP frames received, labeled by action.",
	}, []string{"action"})

	// HandlerDuration observes Action Handler latency.
	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "centralsystem_handler_duration_seconds",
		Help:    "Histogram of Action Handler processing time.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	// MeterBufferDropped counts MeterValues batches dropped by the bounded
	// backpressure channel described in section 5.
	MeterBufferDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "centralsystem_meter_buffer_dropped_total",
		Help: "Total number of meter sample batches dropped due to backpressure.",
	})

	// StationEvictions counts reconnect-triggered Session evictions (4.C).
	StationEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "centralsystem_station_evictions_total",
		Help: "Total number of prior Sessions evicted by a reconnecting station.",
	})

	// RepositoryRetries counts Transient-error retries against the Repository.
	RepositoryRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "centralsystem_repository_retries_total",
		Help: "Total number of repository operation retries after a Transient error.",
	}, []string{"operation"})

	// EventsPublished counts lifecycle/transaction events published to Kafka.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "centralsystem_events_published_total",
		Help: "Total number of integration events published to the event stream.",
	}, []string{"event_type"})
)
