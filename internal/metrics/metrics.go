// Package metrics defines Prometheus metrics for the delivery subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection lifecycle metrics
var (
	// ActiveConnections tracks currently registered WebSocket connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_active_connections",
			Help: "Currently registered WebSocket connections",
		},
	)

	// ConnectionsTotal tracks connection attempts by outcome
	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Connection attempts by outcome (accepted, unauthenticated, duplicate, or limiter reason)",
		},
		[]string{"outcome"},
	)

	// HeartbeatsSentTotal tracks liveness frames written to clients
	HeartbeatsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_heartbeats_sent_total",
			Help: "Total heartbeat frames sent across all sessions",
		},
	)

	// SlowClientsEvicted tracks sessions closed because their send buffer filled
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_slow_clients_evicted_total",
			Help: "Sessions closed because the outbound buffer was full",
		},
	)
)

// Event routing metrics
var (
	// EventsDeliveredTotal tracks events handed to a live connection
	EventsDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_delivered_total",
			Help: "Events delivered to a connected recipient",
		},
	)

	// EventsSkippedTotal tracks events dropped for unreachable recipients
	EventsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_skipped_total",
			Help: "Events skipped because the recipient had no live connection",
		},
	)

	// EventsBufferedTotal tracks events queued on the pull-mode fallback path
	EventsBufferedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_buffered_total",
			Help: "Events queued in the pull-mode event buffer",
		},
	)
)

// Pull-buffer metrics
var (
	// BufferEvictionsTotal tracks oldest-entry evictions from full rings
	BufferEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_buffer_evictions_total",
			Help: "Entries evicted because a per-user ring was full",
		},
	)

	// BufferSweptTotal tracks entries removed by the periodic age sweep
	BufferSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_buffer_swept_total",
			Help: "Entries removed by the periodic age-based sweep",
		},
	)
)
