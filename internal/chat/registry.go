package chat

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/google/uuid"
)

// Registry binds each booking to exactly one room and owns the room's append-only log.
// Room uniqueness and message ordering are enforced by the repository, not here.
type Registry struct {
	repo   domain.ChatRepository
	maxLen int
}

func NewRegistry(repo domain.ChatRepository, maxLen int) *Registry {
	if maxLen <= 0 {
		maxLen = domain.DefaultMaxMessageLen
	}
	return &Registry{repo: repo, maxLen: maxLen}
}

func (r *Registry) GetOrCreate(ctx context.Context, bookingID uuid.UUID) (domain.ChatRoom, error) {
	return r.repo.GetOrCreateRoom(ctx, bookingID)
}

// Find returns a NotFound AppError when the room was never created.
func (r *Registry) Find(ctx context.Context, bookingID uuid.UUID) (domain.ChatRoom, error) {
	return r.repo.FindRoom(ctx, bookingID)
}

func (r *Registry) Append(ctx context.Context, room domain.ChatRoom, senderID uuid.UUID, text string) (domain.ChatMessage, error) {
	body, err := domain.NormalizeMessageText(text, r.maxLen)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if senderID == uuid.Nil {
		return domain.ChatMessage{}, domain.ErrValidation("sender is required")
	}
	return r.repo.AppendMessage(ctx, room.ID, senderID, body)
}

func (r *Registry) History(ctx context.Context, room domain.ChatRoom) ([]domain.ChatMessage, error) {
	return r.repo.ListMessages(ctx, room.ID)
}

func (r *Registry) MaxMessageLen() int { return r.maxLen }
