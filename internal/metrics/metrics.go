// Package metrics exposes the agent's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion Metrics
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "print_agent_stream_frames_total",
			Help: "Stream frames read, by source and frame kind",
		},
		[]string{"source", "kind"}, // "heartbeat", "event", "malformed"
	)

	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "print_agent_ingested_items_total",
			Help: "Items offered to the dedup ledgers, by outcome",
		},
		[]string{"source", "channel", "outcome"}, // "accepted", "duplicate", "rejected", "seeded"
	)

	StreamReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "print_agent_stream_reconnects_total",
			Help: "Stream connection attempts that ended in backoff",
		},
		[]string{"source"},
	)

	StreamState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "print_agent_stream_state",
			Help: "Stream connection state (0=disconnected, 1=connecting, 2=connected, 3=backing-off)",
		},
		[]string{"source"},
	)

	StreamStale = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "print_agent_stream_stale",
			Help: "1 while the stream has been silent longer than the staleness threshold",
		},
		[]string{"source"},
	)

	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "print_agent_polls_total",
			Help: "Backup polls, by result",
		},
		[]string{"source", "result"},
	)

	LedgerSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "print_agent_ledger_entries",
			Help: "Ids currently remembered per dedup ledger",
		},
		[]string{"ledger"},
	)

	// Processing Metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "print_agent_queue_depth",
			Help: "Jobs waiting for the processor",
		},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "print_agent_jobs_total",
			Help: "Processed jobs by kind and confirmation status",
		},
		[]string{"kind", "status"},
	)

	RenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "print_agent_render_duration_seconds",
			Help:    "Receipt layout and rasterization time",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	SinkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "print_agent_sink_duration_seconds",
			Help:    "Time spent handing documents to the printer",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver", "result"},
	)

	// Confirmation Metrics
	ConfirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "print_agent_confirmations_total",
			Help: "Confirmations by status and delivery result",
		},
		[]string{"status", "result"}, // "sent", "error", "rejected", "dropped"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "print_agent_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Status API Metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "print_agent_websocket_clients",
			Help: "Connected status feed clients",
		},
	)
)

// ObserveSince records the time elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
