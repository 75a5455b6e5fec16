package broadcast

import (
	"errors"
	"time"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/google/uuid"
)

const (
	TypeStatusUpdate = "status_update"
	TypeAssignment   = "assignment"
	TypeNewBooking   = "new_booking"
	TypeChatMessage  = "chat_message"
	TypeError        = "error"
)

// StatusUpdate and Assignment go to the booking group after the transition commits.
type StatusUpdate struct {
	Type      string    `json:"type"`
	BookingID uuid.UUID `json:"bookingId"`
	Status    string    `json:"status"`
	UpdatedBy uuid.UUID `json:"updatedBy"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewStatusUpdate(c domain.StatusChange) StatusUpdate {
	return StatusUpdate{
		Type:      TypeStatusUpdate,
		BookingID: c.BookingID,
		Status:    string(c.To),
		UpdatedBy: c.UpdatedBy,
		Notes:     c.Notes,
		Timestamp: c.CreatedAt,
	}
}

type Assignment struct {
	Type       string    `json:"type"`
	BookingID  uuid.UUID `json:"bookingId"`
	Status     string    `json:"status"`
	AssignedTo uuid.UUID `json:"assignedTo"`
	UpdatedBy  uuid.UUID `json:"updatedBy"`
	Notes      string    `json:"notes,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewAssignment(b *domain.Booking, c domain.StatusChange) Assignment {
	a := Assignment{
		Type:      TypeAssignment,
		BookingID: b.ID,
		Status:    string(b.Status),
		UpdatedBy: c.UpdatedBy,
		Notes:     c.Notes,
		Timestamp: c.CreatedAt,
	}
	if b.DeliveryPartnerID != nil {
		a.AssignedTo = *b.DeliveryPartnerID
	}
	return a
}

type NewBooking struct {
	Type            string    `json:"type"`
	BookingID       uuid.UUID `json:"bookingId"`
	Status          string    `json:"status"`
	CustomerID      uuid.UUID `json:"customerId"`
	Customer        string    `json:"customer"`
	PickupAddress   string    `json:"pickupAddress"`
	DeliveryAddress string    `json:"deliveryAddress"`
	Timestamp       time.Time `json:"timestamp"`
}

func NewNewBooking(b *domain.Booking, customerName string) NewBooking {
	return NewBooking{
		Type:            TypeNewBooking,
		BookingID:       b.ID,
		Status:          string(b.Status),
		CustomerID:      b.CustomerID,
		Customer:        customerName,
		PickupAddress:   b.PickupAddress,
		DeliveryAddress: b.DeliveryAddress,
		Timestamp:       b.CreatedAt,
	}
}

// ChatMessage is the canonical record every member of the booking group sees,
// the sender's own connections included.
type ChatMessage struct {
	Type              string    `json:"type"`
	ID                uuid.UUID `json:"id"`
	BookingID         uuid.UUID `json:"bookingId"`
	Message           string    `json:"message"`
	SenderID          uuid.UUID `json:"senderId"`
	SenderDisplayName string    `json:"senderDisplayName"`
	Timestamp         time.Time `json:"timestamp"`
}

func NewChatMessage(bookingID uuid.UUID, m domain.ChatMessage, senderName string) ChatMessage {
	return ChatMessage{
		Type:              TypeChatMessage,
		ID:                m.ID,
		BookingID:         bookingID,
		Message:           m.Text,
		SenderID:          m.SenderID,
		SenderDisplayName: senderName,
		Timestamp:         m.CreatedAt,
	}
}

// Error is only ever written to the connection that caused it.
type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewError(err error) Error {
	code := domain.CodeOf(err)
	msg := "internal error"
	var ae *domain.AppError
	if errors.As(err, &ae) && code != domain.CodeInternal {
		msg = ae.Message
	}
	return Error{Type: TypeError, Code: string(code), Message: msg}
}
