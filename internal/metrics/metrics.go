package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection metrics
var (
	// ConnectedClients tracks the number of authenticated WebSocket clients
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pos_connected_clients",
			Help: "Number of authenticated WebSocket clients",
		},
	)

	// AuthRejectionsTotal tracks rejected connection attempts by reason
	AuthRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_auth_rejections_total",
			Help: "Rejected connection attempts by reason",
		},
		[]string{"reason"},
	)

	// SlowClientsEvicted tracks clients disconnected for full send buffers
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_slow_clients_evicted_total",
			Help: "Clients disconnected because their send buffer was full",
		},
	)
)

// Broadcast metrics
var (
	// BroadcastsTotal tracks published events by event name
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_broadcasts_total",
			Help: "Published events by event name",
		},
		[]string{"event"},
	)

	// BroadcastSendFailuresTotal tracks per-connection delivery failures
	BroadcastSendFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_broadcast_send_failures_total",
			Help: "Per-connection delivery failures during broadcast fan-out",
		},
	)

	// EventsDroppedTotal tracks dropped events by cause (not_found, queue_full)
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_events_dropped_total",
			Help: "Events dropped before delivery by cause",
		},
		[]string{"cause"},
	)

	// SnapshotLoadDuration tracks snapshot query latency in seconds
	SnapshotLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pos_snapshot_load_duration_seconds",
			Help:    "Snapshot load duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"entity"},
	)
)
