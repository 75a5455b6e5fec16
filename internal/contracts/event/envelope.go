package event

import "time"

const (
	Version  = 1
	Producer = "delivery-service"

	RoutingBookingCreated   = "booking.created"
	RoutingBookingAssigned  = "booking.assigned"
	RoutingBookingStatus    = "booking.status_changed"
	RoutingBookingCancelled = "booking.cancelled"
)

// DomainEventEnvelope is the canonical envelope consumed across services.
type DomainEventEnvelope[T any] struct {
	Version    int       `json:"version"`
	Producer   string    `json:"producer"`
	TraceID    string    `json:"trace_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    T         `json:"payload"`
}

type BookingCreatedPayload struct {
	BookingID       string `json:"booking_id"`
	CustomerID      string `json:"customer_id"`
	Status          string `json:"status"`
	PickupAddress   string `json:"pickup_address"`
	DeliveryAddress string `json:"delivery_address"`
	AmountCents     int64  `json:"total_amount_cents"`
}

// BookingStatusPayload covers assigned, status_changed and cancelled.
type BookingStatusPayload struct {
	BookingID         string `json:"booking_id"`
	CustomerID        string `json:"customer_id"`
	DeliveryPartnerID string `json:"delivery_partner_id,omitempty"`
	From              string `json:"from,omitempty"`
	To                string `json:"to"`
	ActorID           string `json:"actor_id"`
	ActorRole         string `json:"actor_role"`
	Notes             string `json:"notes,omitempty"`
}

// RoutingKeyFor picks the routing key for a transition into status.
func RoutingKeyFor(status string) string {
	switch status {
	case "pending":
		return RoutingBookingCreated
	case "assigned":
		return RoutingBookingAssigned
	case "cancelled":
		return RoutingBookingCancelled
	default:
		return RoutingBookingStatus
	}
}
