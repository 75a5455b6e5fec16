package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/broadcast"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/contracts/event"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/logger"
	appCtx "github.com/baechuer/real-time-ressys/services/delivery-service/internal/pkg/context"
	"github.com/google/uuid"
)

type Clock interface{ Now() time.Time }

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Notifier is the publish side of the broadcast bus.
type Notifier interface {
	PublishJSON(key string, v any) (broadcast.Receipt, error)
}

// displayName resolves the chat label for userID. Lookup failures degrade to "Unknown".
func displayName(ctx context.Context, users domain.UserDirectory, userID uuid.UUID) string {
	if users == nil {
		return domain.UnknownDisplayName
	}
	u, err := users.GetUser(ctx, userID)
	if err != nil {
		if !domain.IsCode(err, domain.CodeNotFound) {
			logger.WithCtx(ctx).Warn().Err(err).Str("user_id", userID.String()).Msg("user lookup failed")
		}
		return domain.UnknownDisplayName
	}
	return u.DisplayName()
}

// publish is fire-and-forget: the receipt is returned for callers and tests, drops are
// audited, nothing here can fail the mutation that triggered it.
func publish(ctx context.Context, bus Notifier, al *audit.Logger, key, kind string, frame any) broadcast.Receipt {
	rc, err := bus.PublishJSON(key, frame)
	if err != nil {
		logger.WithCtx(ctx).Error().Err(err).Str("group", key).Str("type", kind).Msg("encode live frame failed")
		return rc
	}
	if rc.Dropped > 0 && al != nil {
		al.NotificationDropped(ctx, key, kind, rc.Members, rc.Dropped)
	}
	return rc
}

func newOutboxMessage[T any](ctx context.Context, routingKey string, payload T, now time.Time) (domain.OutboxMessage, error) {
	msgID := uuid.New()
	traceID := appCtx.GetTraceID(ctx)
	env := event.DomainEventEnvelope[T]{
		Version:    event.Version,
		Producer:   event.Producer,
		TraceID:    traceID,
		MessageID:  msgID.String(),
		OccurredAt: now,
		Payload:    payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return domain.OutboxMessage{}, err
	}
	return domain.OutboxMessage{
		MessageID:  msgID,
		TraceID:    traceID,
		RoutingKey: routingKey,
		Payload:    body,
		OccurredAt: now,
	}, nil
}
