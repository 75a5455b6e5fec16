package rest

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
)

type ctxKeyActor struct{}

func withActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor{}, a)
}

// ActorFrom returns the authenticated actor set by AuthMiddleware.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(ctxKeyActor{}).(domain.Actor)
	return a, ok
}
