package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_active_connections",
			Help: "Currently open websocket connections",
		},
	)

	MessagesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_routed_total",
			Help: "Messages routed by delivery path",
		},
		[]string{"path"}, // "direct" or "queued"
	)

	PendingDrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_pending_drained_total",
			Help: "Pending messages replayed on reconnect",
		},
	)

	DeliveryAcks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_delivery_acks_total",
			Help: "Delivery acknowledgments processed",
		},
	)

	PushSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_push_sent_total",
			Help: "Push notifications handed to FCM",
		},
	)

	StorageErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_storage_errors_total",
			Help: "Pending store append failures",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_rate_limited_total",
			Help: "Message frames rejected by the rate limiter",
		},
	)

	HandshakeRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_handshake_rejected_total",
			Help: "Websocket handshakes rejected by the identity service",
		},
	)
)
