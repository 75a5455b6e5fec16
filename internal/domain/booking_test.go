package domain_test

import (
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	tt, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("bad time %q: %v", s, err)
	}
	return tt.UTC()
}

type cast struct {
	customer domain.Actor
	partner  domain.Actor
	admin    domain.Actor
	stranger domain.Actor
}

func newCast() cast {
	return cast{
		customer: domain.Actor{ID: uuid.New(), Role: domain.RoleCustomer},
		partner:  domain.Actor{ID: uuid.New(), Role: domain.RoleDeliveryPartner},
		admin:    domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin},
		stranger: domain.Actor{ID: uuid.New(), Role: domain.RoleDeliveryPartner},
	}
}

func validInput() domain.NewBookingInput {
	return domain.NewBookingInput{
		FoodItems:       "2x masala dosa",
		PickupAddress:   "12 Curry Lane",
		DeliveryAddress: "4 Harbour St",
		PhoneNumber:     "9000000001",
		AmountCents:     1250,
	}
}

func pendingBooking(t *testing.T, c cast, now time.Time) *domain.Booking {
	t.Helper()
	b, err := domain.NewBooking(c.customer, validInput(), now)
	require.NoError(t, err)
	return b
}

func assignedBooking(t *testing.T, c cast, now time.Time) *domain.Booking {
	t.Helper()
	b := pendingBooking(t, c, now)
	_, err := b.Transition(domain.TransitionRequest{Actor: c.admin, To: domain.StatusAssigned, PartnerID: c.partner.ID}, now)
	require.NoError(t, err)
	return b
}

func TestNewBooking_Validation(t *testing.T) {
	now := mustTime(t, "2026-01-10T10:00:00Z")
	c := newCast()

	t.Run("valid_booking_is_pending", func(t *testing.T) {
		b, err := domain.NewBooking(c.customer, validInput(), now)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, b.Status)
		assert.Equal(t, c.customer.ID, b.CustomerID)
		assert.Nil(t, b.DeliveryPartnerID)
		assert.True(t, b.CanBeCancelled())
		assert.False(t, b.CanChat())
	})

	t.Run("only_customers_create", func(t *testing.T) {
		_, err := domain.NewBooking(c.admin, validInput(), now)
		assert.True(t, domain.IsCode(err, domain.CodePermissionDenied))
	})

	t.Run("rejects_missing_fields", func(t *testing.T) {
		in := validInput()
		in.PickupAddress = "   "
		in.PhoneNumber = "abc"
		in.AmountCents = -1
		_, err := domain.NewBooking(c.customer, in, now)
		require.Error(t, err)
		ae := err.(*domain.AppError)
		assert.Equal(t, domain.CodeValidation, ae.Code)
		assert.Contains(t, ae.Meta, "pickup_address")
		assert.Contains(t, ae.Meta, "phone_number")
		assert.Contains(t, ae.Meta, "total_amount_cents")
	})
}

func TestTransition_FullDeliveryChain(t *testing.T) {
	now := mustTime(t, "2026-01-10T10:00:00Z")
	c := newCast()
	b := assignedBooking(t, c, now)

	assert.Equal(t, domain.StatusAssigned, b.Status)
	require.NotNil(t, b.DeliveryPartnerID)
	assert.Equal(t, c.partner.ID, *b.DeliveryPartnerID)
	require.NotNil(t, b.AssignedAt)

	for i, to := range []domain.Status{domain.StatusStarted, domain.StatusReached, domain.StatusCollected, domain.StatusDelivered} {
		at := now.Add(time.Duration(i+1) * time.Minute)
		from := b.Status
		change, err := b.Transition(domain.TransitionRequest{Actor: c.partner, To: to, Notes: " on the way "}, at)
		require.NoError(t, err, "to %s", to)
		assert.Equal(t, to, b.Status)
		assert.Equal(t, from, change.From)
		assert.Equal(t, to, change.To)
		assert.Equal(t, c.partner.ID, change.UpdatedBy)
		assert.Equal(t, "on the way", change.Notes)
		assert.Equal(t, at, b.UpdatedAt)
	}
	assert.True(t, b.Status.Terminal())

	_, err := b.Transition(domain.TransitionRequest{Actor: c.admin, To: domain.StatusDelivered}, now)
	assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition))
}

func TestTransition_PartnerCannotSkipOrReverse(t *testing.T) {
	now := mustTime(t, "2026-01-10T10:00:00Z")
	c := newCast()

	tests := []struct {
		name  string
		setup []domain.Status
		to    domain.Status
	}{
		{"assigned_to_reached", nil, domain.StatusReached},
		{"assigned_to_delivered", nil, domain.StatusDelivered},
		{"started_to_delivered", []domain.Status{domain.StatusStarted}, domain.StatusDelivered},
		{"started_to_collected", []domain.Status{domain.StatusStarted}, domain.StatusCollected},
		{"reached_to_started", []domain.Status{domain.StatusStarted, domain.StatusReached}, domain.StatusStarted},
		{"started_to_assigned", []domain.Status{domain.StatusStarted}, domain.StatusAssigned},
		{"started_to_pending", []domain.Status{domain.StatusStarted}, domain.StatusPending},
		{"started_to_started", []domain.Status{domain.StatusStarted}, domain.StatusStarted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := assignedBooking(t, c, now)
			for _, s := range tt.setup {
				_, err := b.Transition(domain.TransitionRequest{Actor: c.partner, To: s}, now)
				require.NoError(t, err)
			}
			before := *b

			_, err := b.Transition(domain.TransitionRequest{Actor: c.partner, To: tt.to}, now.Add(time.Hour))
			require.Error(t, err)
			assert.Equal(t, domain.CodeInvalidTransition, domain.CodeOf(err))
			assert.Equal(t, before, *b, "failed guard must not mutate the booking")
		})
	}
}

func TestTransition_RoleGuards(t *testing.T) {
	now := mustTime(t, "2026-01-10T10:00:00Z")
	c := newCast()

	t.Run("non_admin_cannot_assign", func(t *testing.T) {
		b := pendingBooking(t, c, now)
		for _, a := range []domain.Actor{c.customer, c.partner} {
			_, err := b.Transition(domain.TransitionRequest{Actor: a, To: domain.StatusAssigned, PartnerID: c.partner.ID}, now)
			assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition))
		}
		assert.Equal(t, domain.StatusPending, b.Status)
	})

	t.Run("assign_requires_partner", func(t *testing.T) {
		b := pendingBooking(t, c, now)
		_, err := b.Transition(domain.TransitionRequest{Actor: c.admin, To: domain.StatusAssigned}, now)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	})

	t.Run("cannot_reassign", func(t *testing.T) {
		b := assignedBooking(t, c, now)
		_, err := b.Transition(domain.TransitionRequest{Actor: c.admin, To: domain.StatusAssigned, PartnerID: uuid.New()}, now)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition))
		assert.Equal(t, c.partner.ID, *b.DeliveryPartnerID)
	})

	t.Run("pending_cannot_start", func(t *testing.T) {
		b := pendingBooking(t, c, now)
		_, err := b.Transition(domain.TransitionRequest{Actor: c.admin, To: domain.StatusStarted}, now)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition))
	})

	t.Run("other_partner_cannot_advance", func(t *testing.T) {
		b := assignedBooking(t, c, now)
		_, err := b.Transition(domain.TransitionRequest{Actor: c.stranger, To: domain.StatusStarted}, now)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition))
	})

	t.Run("customer_cannot_advance", func(t *testing.T) {
		b := assignedBooking(t, c, now)
		_, err := b.Transition(domain.TransitionRequest{Actor: c.customer, To: domain.StatusStarted}, now)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition))
	})

	t.Run("admin_forces_forward_skip", func(t *testing.T) {
		b := assignedBooking(t, c, now)
		_, err := b.Transition(domain.TransitionRequest{Actor: c.admin, To: domain.StatusCollected}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCollected, b.Status)

		_, err = b.Transition(domain.TransitionRequest{Actor: c.admin, To: domain.StatusStarted}, now)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition))
	})

	t.Run("unknown_status", func(t *testing.T) {
		b := assignedBooking(t, c, now)
		_, err := b.Transition(domain.TransitionRequest{Actor: c.admin, To: domain.Status("teleported")}, now)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition))
	})
}

func TestTransition_Cancellation(t *testing.T) {
	now := mustTime(t, "2026-01-10T10:00:00Z")
	c := newCast()

	t.Run("owner_cancels_pending", func(t *testing.T) {
		b := pendingBooking(t, c, now)
		_, err := b.Transition(domain.TransitionRequest{Actor: c.customer, To: domain.StatusCancelled}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, b.Status)
		require.NotNil(t, b.CancelledAt)
		require.NotNil(t, b.CancelledBy)
		assert.Equal(t, c.customer.ID, *b.CancelledBy)
	})

	t.Run("owner_cancels_assigned", func(t *testing.T) {
		b := assignedBooking(t, c, now)
		_, err := b.Transition(domain.TransitionRequest{Actor: c.customer, To: domain.StatusCancelled}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, b.Status)
	})

	t.Run("no_cancel_after_start", func(t *testing.T) {
		b := assignedBooking(t, c, now)
		_, err := b.Transition(domain.TransitionRequest{Actor: c.partner, To: domain.StatusStarted}, now)
		require.NoError(t, err)
		_, err = b.Transition(domain.TransitionRequest{Actor: c.customer, To: domain.StatusCancelled}, now)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition))
		assert.Nil(t, b.CancelledAt)
	})

	t.Run("only_owner_cancels", func(t *testing.T) {
		other := domain.Actor{ID: uuid.New(), Role: domain.RoleCustomer}
		for _, a := range []domain.Actor{other, c.partner, c.admin} {
			b := assignedBooking(t, c, now)
			_, err := b.Transition(domain.TransitionRequest{Actor: a, To: domain.StatusCancelled}, now)
			assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition), "actor role %s", a.Role)
			assert.Equal(t, domain.StatusAssigned, b.Status)
		}
	})

	t.Run("cancelled_is_terminal", func(t *testing.T) {
		b := pendingBooking(t, c, now)
		_, err := b.Transition(domain.TransitionRequest{Actor: c.customer, To: domain.StatusCancelled}, now)
		require.NoError(t, err)
		_, err = b.Transition(domain.TransitionRequest{Actor: c.admin, To: domain.StatusAssigned, PartnerID: c.partner.ID}, now)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition))
	})
}

func TestInvalidTransition_NamesStatuses(t *testing.T) {
	err := domain.ErrInvalidTransition(domain.StatusStarted, domain.StatusDelivered, "skip")
	ae := err.(*domain.AppError)
	assert.Equal(t, "started", ae.Meta["from"])
	assert.Equal(t, "delivered", ae.Meta["to"])
	assert.Contains(t, err.Error(), "from started to delivered")
}

func TestParseStatus(t *testing.T) {
	s, err := domain.ParseStatus(" Reached ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReached, s)

	_, err = domain.ParseStatus("lost")
	assert.True(t, domain.IsCode(err, domain.CodeValidation))
}
