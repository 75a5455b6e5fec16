package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/google/uuid"
)

type ChatRepo struct {
	mu       sync.Mutex
	now      func() time.Time
	rooms    map[uuid.UUID]domain.ChatRoom // booking id -> room
	messages map[uuid.UUID][]domain.ChatMessage
}

func NewChatRepo() *ChatRepo {
	return &ChatRepo{
		now:      time.Now,
		rooms:    make(map[uuid.UUID]domain.ChatRoom),
		messages: make(map[uuid.UUID][]domain.ChatMessage),
	}
}

// WithClock is for tests that need to force equal timestamps.
func (r *ChatRepo) WithClock(now func() time.Time) *ChatRepo {
	r.now = now
	return r
}

func (r *ChatRepo) GetOrCreateRoom(ctx context.Context, bookingID uuid.UUID) (domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[bookingID]; ok {
		return room, nil
	}
	t := r.now().UTC()
	room := domain.ChatRoom{ID: uuid.New(), BookingID: bookingID, CreatedAt: t, UpdatedAt: t}
	r.rooms[bookingID] = room
	return room, nil
}

func (r *ChatRepo) FindRoom(ctx context.Context, bookingID uuid.UUID) (domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[bookingID]
	if !ok {
		return domain.ChatRoom{}, domain.ErrNotFound("chat room not found")
	}
	return room, nil
}

// AppendMessage stamps each message strictly after the previous one in the room.
func (r *ChatRepo) AppendMessage(ctx context.Context, roomID, senderID uuid.UUID, text string) (domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.roomExists(roomID) {
		return domain.ChatMessage{}, domain.ErrNotFound("chat room not found")
	}

	t := r.now().UTC()
	if log := r.messages[roomID]; len(log) > 0 {
		if last := log[len(log)-1].CreatedAt; !t.After(last) {
			t = last.Add(time.Microsecond)
		}
	}
	m := domain.ChatMessage{ID: uuid.New(), RoomID: roomID, SenderID: senderID, Text: text, CreatedAt: t}
	r.messages[roomID] = append(r.messages[roomID], m)

	for bid, room := range r.rooms {
		if room.ID == roomID {
			room.UpdatedAt = t
			r.rooms[bid] = room
			break
		}
	}
	return m, nil
}

func (r *ChatRepo) ListMessages(ctx context.Context, roomID uuid.UUID) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.messages[roomID]
	out := make([]domain.ChatMessage, len(log))
	copy(out, log)
	return out, nil
}

func (r *ChatRepo) roomExists(roomID uuid.UUID) bool {
	for _, room := range r.rooms {
		if room.ID == roomID {
			return true
		}
	}
	return false
}
