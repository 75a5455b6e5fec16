package service

import (
	"context"
	"time"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/broadcast"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/chat"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/metrics"
	"github.com/google/uuid"
)

type ChatService struct {
	bookings domain.BookingRepository
	rooms    *chat.Registry
	users    domain.UserDirectory
	bus      Notifier
	audit    *audit.Logger
}

func NewChatService(bookings domain.BookingRepository, rooms *chat.Registry, users domain.UserDirectory, bus Notifier, al *audit.Logger) *ChatService {
	return &ChatService{bookings: bookings, rooms: rooms, users: users, bus: bus, audit: al}
}

// Entry is one history line with its sender label resolved.
type Entry struct {
	ID                uuid.UUID
	Message           string
	SenderID          uuid.UUID
	SenderDisplayName string
	Timestamp         time.Time
	IsRead            bool
}

// Authorize is the admission check shared by the history endpoint and the live channel.
func (s *ChatService) Authorize(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !domain.CanAccess(actor, b) {
		return nil, domain.ErrPermissionDenied("you do not have access to this chat")
	}
	return b, nil
}

// History returns an empty slice when the room does not exist yet.
func (s *ChatService) History(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) ([]Entry, error) {
	if _, err := s.Authorize(ctx, actor, bookingID); err != nil {
		return nil, err
	}

	room, err := s.rooms.Find(ctx, bookingID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return []Entry{}, nil
		}
		return nil, err
	}

	msgs, err := s.rooms.History(ctx, room)
	if err != nil {
		return nil, err
	}

	names := make(map[uuid.UUID]string)
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		name, ok := names[m.SenderID]
		if !ok {
			name = displayName(ctx, s.users, m.SenderID)
			names[m.SenderID] = name
		}
		out = append(out, Entry{
			ID:                m.ID,
			Message:           m.Text,
			SenderID:          m.SenderID,
			SenderDisplayName: name,
			Timestamp:         m.CreatedAt,
			IsRead:            m.IsRead,
		})
	}
	return out, nil
}

// Send persists text as a message from actor and then publishes the stored record
// to the booking group. The sender is always the authenticated actor.
func (s *ChatService) Send(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, text string) (broadcast.ChatMessage, broadcast.Receipt, error) {
	if _, err := s.Authorize(ctx, actor, bookingID); err != nil {
		return broadcast.ChatMessage{}, broadcast.Receipt{}, err
	}

	// rejected text must not leave an empty room behind
	if _, err := domain.NormalizeMessageText(text, s.rooms.MaxMessageLen()); err != nil {
		return broadcast.ChatMessage{}, broadcast.Receipt{}, err
	}

	room, err := s.rooms.GetOrCreate(ctx, bookingID)
	if err != nil {
		return broadcast.ChatMessage{}, broadcast.Receipt{}, err
	}
	msg, err := s.rooms.Append(ctx, room, actor.ID, text)
	if err != nil {
		return broadcast.ChatMessage{}, broadcast.Receipt{}, err
	}
	metrics.ChatMessages.Inc()
	if s.audit != nil {
		s.audit.MessageSent(ctx, bookingID, msg.ID, actor.ID)
	}

	frame := broadcast.NewChatMessage(bookingID, msg, displayName(ctx, s.users, actor.ID))
	rc := publish(ctx, s.bus, s.audit, broadcast.BookingGroup(bookingID), broadcast.TypeChatMessage, frame)
	return frame, rc, nil
}

func (s *ChatService) MaxMessageLen() int { return s.rooms.MaxMessageLen() }
