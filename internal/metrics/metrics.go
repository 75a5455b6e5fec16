package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "delivery_service"

var (
	BroadcastPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_publishes_total",
			Help:      "Total number of group publishes",
		},
		[]string{"group"}, // booking, admin
	)

	BroadcastDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_deliveries_total",
			Help:      "Per-member delivery outcomes of group publishes",
		},
		[]string{"group", "result"}, // delivered, dropped
	)

	LiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Number of open live connections",
		},
		[]string{"channel"}, // booking, admin
	)

	SessionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_sessions_rejected_total",
			Help:      "Live connection attempts refused before upgrade",
		},
		[]string{"reason"}, // unauthorized, permission_denied, not_found
	)

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions by outcome",
		},
		[]string{"to", "result"}, // ok, rejected
	)

	ChatMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Chat messages persisted",
		},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox rows processed by the worker",
		},
		[]string{"result"}, // sent, retry, dead
	)
)

// ObservePublish records one publish receipt.
func ObservePublish(group string, delivered, dropped int) {
	BroadcastPublishes.WithLabelValues(group).Inc()
	if delivered > 0 {
		BroadcastDeliveries.WithLabelValues(group, "delivered").Add(float64(delivered))
	}
	if dropped > 0 {
		BroadcastDeliveries.WithLabelValues(group, "dropped").Add(float64(dropped))
	}
}

func ObserveTransition(to string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	BookingTransitions.WithLabelValues(to, result).Inc()
}
