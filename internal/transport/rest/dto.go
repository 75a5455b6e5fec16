package rest

import (
	"time"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/service"
)

type createBookingRequest struct {
	FoodItems           string `json:"food_items"`
	PickupAddress       string `json:"pickup_address"`
	DeliveryAddress     string `json:"delivery_address"`
	PhoneNumber         string `json:"phone_number"`
	TotalAmountCents    int64  `json:"total_amount_cents"`
	SpecialInstructions string `json:"special_instructions"`
}

type assignRequest struct {
	DeliveryPartnerID string `json:"delivery_partner_id"`
	Notes             string `json:"notes"`
}

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type cancelRequest struct {
	Notes string `json:"notes"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

type BookingResponse struct {
	ID                  string     `json:"id"`
	CustomerID          string     `json:"customer_id"`
	DeliveryPartnerID   *string    `json:"delivery_partner_id"`
	Status              string     `json:"status"`
	FoodItems           string     `json:"food_items"`
	PickupAddress       string     `json:"pickup_address"`
	DeliveryAddress     string     `json:"delivery_address"`
	PhoneNumber         string     `json:"phone_number"`
	TotalAmountCents    int64      `json:"total_amount_cents"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
	CanBeCancelled      bool       `json:"can_be_cancelled"`
	CanChat             bool       `json:"can_chat"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	AssignedAt          *time.Time `json:"assigned_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy         *string    `json:"cancelled_by,omitempty"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	out := BookingResponse{
		ID:                  b.ID.String(),
		CustomerID:          b.CustomerID.String(),
		Status:              string(b.Status),
		FoodItems:           b.FoodItems,
		PickupAddress:       b.PickupAddress,
		DeliveryAddress:     b.DeliveryAddress,
		PhoneNumber:         b.PhoneNumber,
		TotalAmountCents:    b.AmountCents,
		SpecialInstructions: b.SpecialInstructions,
		CanBeCancelled:      b.CanBeCancelled(),
		CanChat:             b.CanChat(),
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
		AssignedAt:          b.AssignedAt,
		CancelledAt:         b.CancelledAt,
	}
	if b.DeliveryPartnerID != nil {
		s := b.DeliveryPartnerID.String()
		out.DeliveryPartnerID = &s
	}
	if b.CancelledBy != nil {
		s := b.CancelledBy.String()
		out.CancelledBy = &s
	}
	return out
}

type HistoryResponse struct {
	ID         string    `json:"id"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	UpdatedBy  string    `json:"updated_by"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toHistoryResponse(cs []domain.StatusChange) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, HistoryResponse{
			ID:         c.ID.String(),
			FromStatus: string(c.From),
			ToStatus:   string(c.To),
			UpdatedBy:  c.UpdatedBy.String(),
			Notes:      c.Notes,
			CreatedAt:  c.CreatedAt,
		})
	}
	return out
}

// MessageResponse keeps the camelCase shape of the live chat frame.
type MessageResponse struct {
	ID                string    `json:"id"`
	Message           string    `json:"message"`
	SenderID          string    `json:"senderId"`
	SenderDisplayName string    `json:"senderDisplayName"`
	Timestamp         time.Time `json:"timestamp"`
	IsRead            bool      `json:"isRead"`
}

func toMessageResponses(es []service.Entry) []MessageResponse {
	out := make([]MessageResponse, 0, len(es))
	for _, e := range es {
		out = append(out, MessageResponse{
			ID:                e.ID.String(),
			Message:           e.Message,
			SenderID:          e.SenderID.String(),
			SenderDisplayName: e.SenderDisplayName,
			Timestamp:         e.Timestamp,
			IsRead:            e.IsRead,
		})
	}
	return out
}
