package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusStarted   Status = "started"
	StatusReached   Status = "reached"
	StatusCollected Status = "collected"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// deliveryChain is the only forward path a booking may take.
var deliveryChain = []Status{
	StatusPending,
	StatusAssigned,
	StatusStarted,
	StatusReached,
	StatusCollected,
	StatusDelivered,
}

func (s Status) Valid() bool {
	return s == StatusCancelled || s.rank() >= 0
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// rank is the position of s in the delivery chain, -1 for cancelled or unknown values.
func (s Status) rank() int {
	for i, c := range deliveryChain {
		if c == s {
			return i
		}
	}
	return -1
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", ErrValidationMeta("unknown status", map[string]string{"status": s})
	}
	return st, nil
}

type Booking struct {
	ID                uuid.UUID
	CustomerID        uuid.UUID
	DeliveryPartnerID *uuid.UUID
	Status            Status

	FoodItems           string
	PickupAddress       string
	DeliveryAddress     string
	PhoneNumber         string
	AmountCents         int64
	SpecialInstructions string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	AssignedAt  *time.Time
	CancelledAt *time.Time
	CancelledBy *uuid.UUID
}

func (b *Booking) CanBeCancelled() bool {
	return b.Status == StatusPending || b.Status == StatusAssigned
}

func (b *Booking) CanChat() bool {
	switch b.Status {
	case StatusAssigned, StatusStarted, StatusReached, StatusCollected:
		return true
	}
	return false
}

type NewBookingInput struct {
	FoodItems           string
	PickupAddress       string
	DeliveryAddress     string
	PhoneNumber         string
	AmountCents         int64
	SpecialInstructions string
}

func NewBooking(customer Actor, in NewBookingInput, now time.Time) (*Booking, error) {
	if customer.Role != RoleCustomer || customer.ID == uuid.Nil {
		return nil, ErrPermissionDenied("only customers can create bookings")
	}

	in.FoodItems = strings.TrimSpace(in.FoodItems)
	in.PickupAddress = strings.TrimSpace(in.PickupAddress)
	in.DeliveryAddress = strings.TrimSpace(in.DeliveryAddress)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.SpecialInstructions = strings.TrimSpace(in.SpecialInstructions)

	meta := map[string]string{}
	if in.FoodItems == "" || utf8.RuneCountInString(in.FoodItems) > 2000 {
		meta["food_items"] = "required, <= 2000 chars"
	}
	if in.PickupAddress == "" || utf8.RuneCountInString(in.PickupAddress) > 500 {
		meta["pickup_address"] = "required, <= 500 chars"
	}
	if in.DeliveryAddress == "" || utf8.RuneCountInString(in.DeliveryAddress) > 500 {
		meta["delivery_address"] = "required, <= 500 chars"
	}
	if !validPhone(in.PhoneNumber) {
		meta["phone_number"] = "7 to 15 digits, optional leading +"
	}
	if in.AmountCents < 0 {
		meta["total_amount_cents"] = "must be >= 0"
	}
	if utf8.RuneCountInString(in.SpecialInstructions) > 1000 {
		meta["special_instructions"] = "must be <= 1000 chars"
	}
	if len(meta) > 0 {
		return nil, ErrValidationMeta("invalid booking", meta)
	}

	t := now.UTC()
	return &Booking{
		ID:                  uuid.New(),
		CustomerID:          customer.ID,
		Status:              StatusPending,
		FoodItems:           in.FoodItems,
		PickupAddress:       in.PickupAddress,
		DeliveryAddress:     in.DeliveryAddress,
		PhoneNumber:         in.PhoneNumber,
		AmountCents:         in.AmountCents,
		SpecialInstructions: in.SpecialInstructions,
		CreatedAt:           t,
		UpdatedAt:           t,
	}, nil
}

func validPhone(s string) bool {
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// StatusChange is one row of the append-only status history.
// From is empty for the creation record.
type StatusChange struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	From      Status
	To        Status
	UpdatedBy uuid.UUID
	Notes     string
	CreatedAt time.Time
}

type TransitionRequest struct {
	Actor     Actor
	To        Status
	PartnerID uuid.UUID // required when To == StatusAssigned
	Notes     string
}

// Transition runs the guard for req and, only if it passes, mutates b and returns
// the history record to persist alongside it.
func (b *Booking) Transition(req TransitionRequest, now time.Time) (StatusChange, error) {
	from, to := b.Status, req.To

	if err := b.guard(req); err != nil {
		return StatusChange{}, err
	}

	t := now.UTC()
	switch to {
	case StatusAssigned:
		partner := req.PartnerID
		b.DeliveryPartnerID = &partner
		b.AssignedAt = &t
	case StatusCancelled:
		by := req.Actor.ID
		b.CancelledAt = &t
		b.CancelledBy = &by
	}
	b.Status = to
	b.UpdatedAt = t

	return StatusChange{
		ID:        uuid.New(),
		BookingID: b.ID,
		From:      from,
		To:        to,
		UpdatedBy: req.Actor.ID,
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: t,
	}, nil
}

func (b *Booking) guard(req TransitionRequest) error {
	from, to, actor := b.Status, req.To, req.Actor

	if !to.Valid() {
		return ErrInvalidTransition(from, to, "unknown status")
	}
	if from.Terminal() {
		return ErrInvalidTransition(from, to, "booking is already "+string(from))
	}

	switch to {
	case StatusPending:
		return ErrInvalidTransition(from, to, "a booking never returns to pending")

	case StatusAssigned:
		if actor.Role != RoleAdmin {
			return ErrInvalidTransition(from, to, "only an admin can assign a delivery partner")
		}
		if from != StatusPending {
			return ErrInvalidTransition(from, to, "only pending bookings can be assigned")
		}
		if req.PartnerID == uuid.Nil {
			return ErrValidationMeta("delivery partner is required", map[string]string{
				"delivery_partner_id": "required",
			})
		}
		return nil

	case StatusCancelled:
		if actor.Role != RoleCustomer || actor.ID != b.CustomerID {
			return ErrInvalidTransition(from, to, "only the owning customer can cancel")
		}
		if !b.CanBeCancelled() {
			return ErrInvalidTransition(from, to, "cancellation is only possible while pending or assigned")
		}
		return nil
	}

	// started, reached, collected, delivered
	if b.DeliveryPartnerID == nil {
		return ErrInvalidTransition(from, to, "booking has no delivery partner")
	}
	switch actor.Role {
	case RoleDeliveryPartner:
		if actor.ID != *b.DeliveryPartnerID {
			return ErrInvalidTransition(from, to, "only the assigned delivery partner can update progress")
		}
		if to.rank() != from.rank()+1 {
			return ErrInvalidTransition(from, to, "progress must advance one step at a time")
		}
		return nil
	case RoleAdmin:
		if to.rank() <= from.rank() {
			return ErrInvalidTransition(from, to, "progress only moves forward")
		}
		return nil
	case RoleCustomer, RoleUnknown:
		return ErrInvalidTransition(from, to, actor.Role.String()+" cannot update delivery progress")
	}
	return ErrInvalidTransition(from, to, "unsupported role")
}
