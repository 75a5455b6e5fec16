package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BookingRepository is the durable booking store. Every mutation goes through WithTx so that
// the status change, its history row and the outbox row commit or roll back together.
type BookingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	List(ctx context.Context, f BookingFilter) ([]*Booking, error)
	ListHistory(ctx context.Context, bookingID uuid.UUID) ([]StatusChange, error)

	WithTx(ctx context.Context, fn func(tx BookingTx) error) error
}

type BookingTx interface {
	Insert(ctx context.Context, b *Booking) error
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error)
	Update(ctx context.Context, b *Booking) error
	AppendHistory(ctx context.Context, c StatusChange) error
	InsertOutbox(ctx context.Context, m OutboxMessage) error
}

// BookingFilter narrows List. Nil fields are not applied.
type BookingFilter struct {
	CustomerID        *uuid.UUID
	DeliveryPartnerID *uuid.UUID
	Limit             int
}

// ChatRepository persists rooms and their append-only message log.
// GetOrCreateRoom must be a single atomic upsert keyed by booking id.
type ChatRepository interface {
	GetOrCreateRoom(ctx context.Context, bookingID uuid.UUID) (ChatRoom, error)
	FindRoom(ctx context.Context, bookingID uuid.UUID) (ChatRoom, error)
	AppendMessage(ctx context.Context, roomID, senderID uuid.UUID, text string) (ChatMessage, error)
	ListMessages(ctx context.Context, roomID uuid.UUID) ([]ChatMessage, error)
}

type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
}

type OutboxMessage struct {
	MessageID  uuid.UUID
	TraceID    string
	RoutingKey string
	Payload    []byte
	OccurredAt time.Time
}
