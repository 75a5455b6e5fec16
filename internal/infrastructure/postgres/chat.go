package postgres

import (
	"context"
	"errors"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetOrCreateRoom is a single upsert on the unique booking_id. The no-op update makes
// RETURNING yield the existing row for every caller that loses the race.
func (r *Repository) GetOrCreateRoom(ctx context.Context, bookingID uuid.UUID) (domain.ChatRoom, error) {
	var room domain.ChatRoom
	err := r.pool.QueryRow(ctx, `
		INSERT INTO chat_rooms (id, booking_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (booking_id) DO UPDATE SET updated_at = chat_rooms.updated_at
		RETURNING id, booking_id, created_at, updated_at
	`, uuid.New(), bookingID).Scan(&room.ID, &room.BookingID, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return domain.ChatRoom{}, err
	}
	return room, nil
}

func (r *Repository) FindRoom(ctx context.Context, bookingID uuid.UUID) (domain.ChatRoom, error) {
	var room domain.ChatRoom
	err := r.pool.QueryRow(ctx, `
		SELECT id, booking_id, created_at, updated_at
		FROM chat_rooms
		WHERE booking_id = $1
	`, bookingID).Scan(&room.ID, &room.BookingID, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ChatRoom{}, domain.ErrNotFound("chat room not found")
		}
		return domain.ChatRoom{}, err
	}
	return room, nil
}

// AppendMessage serialises appends per room through the room row lock and stamps
// each message strictly after the newest one already stored.
func (r *Repository) AppendMessage(ctx context.Context, roomID, senderID uuid.UUID, text string) (domain.ChatMessage, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM chat_rooms WHERE id = $1 FOR UPDATE`, roomID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ChatMessage{}, domain.ErrNotFound("chat room not found")
		}
		return domain.ChatMessage{}, err
	}

	m := domain.ChatMessage{ID: uuid.New(), RoomID: roomID, SenderID: senderID, Text: text}
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_messages (id, room_id, sender_id, message, created_at, is_read)
		VALUES (
			$1, $2, $3, $4,
			GREATEST(
				clock_timestamp(),
				COALESCE((SELECT MAX(created_at) FROM chat_messages WHERE room_id = $2), '-infinity'::timestamptz) + INTERVAL '1 microsecond'
			),
			FALSE
		)
		RETURNING created_at, is_read
	`, m.ID, roomID, senderID, text).Scan(&m.CreatedAt, &m.IsRead)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE chat_rooms SET updated_at = $2 WHERE id = $1`, roomID, m.CreatedAt); err != nil {
		return domain.ChatMessage{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ChatMessage{}, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func (r *Repository) ListMessages(ctx context.Context, roomID uuid.UUID) ([]domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, room_id, sender_id, message, created_at, is_read
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at ASC, id ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Text, &m.CreatedAt, &m.IsRead); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
