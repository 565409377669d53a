// internal/realtime/metrics.go
// Prometheus metrics for the live channel

package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_active_connections",
		Help: "Number of open websocket connections",
	})

	onlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_online_users",
		Help: "Number of users with at least one open connection",
	})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_ws_events_total",
		Help: "Websocket events processed, by type and direction",
	}, []string{"type", "direction"})

	droppedSends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_ws_dropped_sends_total",
		Help: "Events dropped because a session's send queue was full",
	})
)
