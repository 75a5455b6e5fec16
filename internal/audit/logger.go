package audit

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	appCtx "github.com/baechuer/real-time-ressys/services/delivery-service/internal/pkg/context"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger provides structured audit logging for business events
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

func (l *Logger) BookingCreated(ctx context.Context, b *domain.Booking) {
	l.log.Info().
		Str("action", "booking_created").
		Str("booking_id", b.ID.String()).
		Str("customer_id", b.CustomerID.String()).
		Int64("amount_cents", b.AmountCents).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("Booking created")
}

func (l *Logger) BookingAssigned(ctx context.Context, bookingID, partnerID, actorID uuid.UUID) {
	l.log.Info().
		Str("action", "booking_assigned").
		Str("booking_id", bookingID.String()).
		Str("delivery_partner_id", partnerID.String()).
		Str("actor_user_id", actorID.String()).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("Delivery partner assigned")
}

func (l *Logger) StatusChanged(ctx context.Context, c domain.StatusChange, actorRole domain.Role) {
	l.log.Info().
		Str("action", "status_changed").
		Str("booking_id", c.BookingID.String()).
		Str("from", string(c.From)).
		Str("to", string(c.To)).
		Str("actor_user_id", c.UpdatedBy.String()).
		Str("actor_role", actorRole.String()).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("Booking status changed")
}

func (l *Logger) BookingCancelled(ctx context.Context, bookingID, actorID uuid.UUID, notes string) {
	l.log.Warn().
		Str("action", "booking_cancelled").
		Str("booking_id", bookingID.String()).
		Str("actor_user_id", actorID.String()).
		Str("notes", notes).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("Booking cancelled")
}

// MessageSent never logs the message body.
func (l *Logger) MessageSent(ctx context.Context, bookingID, messageID, senderID uuid.UUID) {
	l.log.Debug().
		Str("action", "message_sent").
		Str("booking_id", bookingID.String()).
		Str("message_id", messageID.String()).
		Str("sender_id", senderID.String()).
		Msg("Chat message sent")
}

func (l *Logger) SessionRejected(ctx context.Context, bookingID, userID uuid.UUID, reason string) {
	l.log.Warn().
		Str("action", "session_rejected").
		Str("booking_id", bookingID.String()).
		Str("user_id", userID.String()).
		Str("reason", reason).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("Live session rejected")
}

// NotificationDropped records live pushes that did not reach every member.
func (l *Logger) NotificationDropped(ctx context.Context, group, kind string, members, dropped int) {
	l.log.Warn().
		Str("action", "notification_dropped").
		Str("group", group).
		Str("type", kind).
		Int("members", members).
		Int("dropped", dropped).
		Str("trace_id", appCtx.GetTraceID(ctx)).
		Msg("Live notification dropped")
}

func (l *Logger) OutboxMessageSent(ctx context.Context, messageID, routingKey string) {
	l.log.Debug().
		Str("action", "outbox_sent").
		Str("message_id", messageID).
		Str("routing_key", routingKey).
		Msg("Outbox message sent")
}

func (l *Logger) OutboxMessageDead(ctx context.Context, messageID, routingKey string, retries int) {
	l.log.Error().
		Str("action", "outbox_dead").
		Str("message_id", messageID).
		Str("routing_key", routingKey).
		Int("retries", retries).
		Msg("Outbox message moved to dead status")
}
