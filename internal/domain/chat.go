package domain

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const DefaultMaxMessageLen = 2000

type ChatRoom struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ChatMessage struct {
	ID        uuid.UUID
	RoomID    uuid.UUID
	SenderID  uuid.UUID
	Text      string
	CreatedAt time.Time
	IsRead    bool
}

// NormalizeMessageText trims text and enforces 1..max runes.
func NormalizeMessageText(text string, max int) (string, error) {
	if max <= 0 {
		max = DefaultMaxMessageLen
	}
	t := strings.TrimSpace(text)
	if t == "" {
		return "", ErrValidationMeta("message cannot be empty", map[string]string{"message": "required"})
	}
	if utf8.RuneCountInString(t) > max {
		return "", ErrValidationMeta("message too long", map[string]string{
			"message": "must be <= " + strconv.Itoa(max) + " chars",
		})
	}
	return t, nil
}
