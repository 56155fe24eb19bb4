package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telesession_active_connections",
			Help: "Authenticated websocket connections currently open",
		},
	)

	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telesession_active_rooms",
			Help: "Rooms with at least one member",
		},
	)

	RoomJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telesession_room_joins_total",
			Help: "Total room joins",
		},
	)

	MessagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telesession_messages_relayed_total",
			Help: "Signaling messages relayed between peers",
		},
		[]string{"type"},
	)

	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telesession_auth_failures_total",
			Help: "Rejected realtime connection attempts",
		},
		[]string{"reason"},
	)
)
