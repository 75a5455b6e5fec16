package service

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/broadcast"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/contracts/event"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/metrics"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// BookingService is the only writer of booking state. Live notifications are
// published strictly after the transaction that produced them has committed.
type BookingService struct {
	repo  domain.BookingRepository
	users domain.UserDirectory
	bus   Notifier
	clock Clock
	audit *audit.Logger
}

func NewBookingService(repo domain.BookingRepository, users domain.UserDirectory, bus Notifier, clock Clock, al *audit.Logger) *BookingService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &BookingService{repo: repo, users: users, bus: bus, clock: clock, audit: al}
}

// Result is a committed mutation plus the outcome of its live notifications.
type Result struct {
	Booking  *domain.Booking
	Change   domain.StatusChange
	Receipts []broadcast.Receipt
}

func (s *BookingService) Create(ctx context.Context, actor domain.Actor, in domain.NewBookingInput) (*Result, error) {
	now := s.clock.Now().UTC()
	b, err := domain.NewBooking(actor, in, now)
	if err != nil {
		return nil, err
	}

	change := domain.StatusChange{
		ID:        uuid.New(),
		BookingID: b.ID,
		To:        domain.StatusPending,
		UpdatedBy: actor.ID,
		Notes:     "Booking created",
		CreatedAt: now,
	}

	err = s.repo.WithTx(ctx, func(tx domain.BookingTx) error {
		if err := tx.Insert(ctx, b); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, change); err != nil {
			return err
		}
		msg, err := newOutboxMessage(ctx, event.RoutingBookingCreated, event.BookingCreatedPayload{
			BookingID:       b.ID.String(),
			CustomerID:      b.CustomerID.String(),
			Status:          string(b.Status),
			PickupAddress:   b.PickupAddress,
			DeliveryAddress: b.DeliveryAddress,
			AmountCents:     b.AmountCents,
		}, now)
		if err != nil {
			return err
		}
		return tx.InsertOutbox(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.BookingCreated(ctx, b)
	}

	name := displayName(ctx, s.users, b.CustomerID)
	rc := publish(ctx, s.bus, s.audit, broadcast.AdminGroup, broadcast.TypeNewBooking, broadcast.NewNewBooking(b, name))
	return &Result{Booking: b, Change: change, Receipts: []broadcast.Receipt{rc}}, nil
}

func (s *BookingService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanAccess(actor, b) {
		return nil, domain.ErrPermissionDenied("you do not have access to this booking")
	}
	return b, nil
}

// List is scoped by role: customers see their own bookings, partners their assignments, admins everything.
func (s *BookingService) List(ctx context.Context, actor domain.Actor, limit int) ([]*domain.Booking, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	if !actor.Authenticated() {
		return nil, domain.ErrPermissionDenied("authentication required")
	}

	f := domain.BookingFilter{Limit: limit}
	switch actor.Role {
	case domain.RoleCustomer:
		f.CustomerID = &actor.ID
	case domain.RoleDeliveryPartner:
		f.DeliveryPartnerID = &actor.ID
	case domain.RoleAdmin, domain.RoleUnknown:
	}
	return s.repo.List(ctx, f)
}

func (s *BookingService) History(ctx context.Context, actor domain.Actor, id uuid.UUID) ([]domain.StatusChange, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

// Assign requires partnerID to name an existing delivery partner.
func (s *BookingService) Assign(ctx context.Context, actor domain.Actor, id, partnerID uuid.UUID, notes string) (*Result, error) {
	if actor.Role == domain.RoleAdmin && partnerID != uuid.Nil {
		u, err := s.users.GetUser(ctx, partnerID)
		if err != nil {
			if domain.IsCode(err, domain.CodeNotFound) {
				return nil, domain.ErrValidationMeta("unknown delivery partner", map[string]string{"delivery_partner_id": "not found"})
			}
			return nil, err
		}
		if u.Role != domain.RoleDeliveryPartner {
			return nil, domain.ErrValidationMeta("user is not a delivery partner", map[string]string{"delivery_partner_id": "must have role delivery_partner"})
		}
	}
	return s.transition(ctx, id, domain.TransitionRequest{
		Actor:     actor,
		To:        domain.StatusAssigned,
		PartnerID: partnerID,
		Notes:     notes,
	})
}

func (s *BookingService) UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.Status, notes string) (*Result, error) {
	return s.transition(ctx, id, domain.TransitionRequest{Actor: actor, To: to, Notes: notes})
}

func (s *BookingService) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, notes string) (*Result, error) {
	return s.transition(ctx, id, domain.TransitionRequest{Actor: actor, To: domain.StatusCancelled, Notes: notes})
}

// transition runs the guard against the locked row. Actors with no relation to the
// booking are refused before the state machine sees the request.
func (s *BookingService) transition(ctx context.Context, id uuid.UUID, req domain.TransitionRequest) (*Result, error) {
	var (
		out    *domain.Booking
		change domain.StatusChange
	)

	err := s.repo.WithTx(ctx, func(tx domain.BookingTx) error {
		b, err := tx.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !domain.CanAccess(req.Actor, b) {
			return domain.ErrPermissionDenied("you do not have access to this booking")
		}

		c, err := b.Transition(req, s.clock.Now())
		if err != nil {
			return err
		}
		if err := tx.Update(ctx, b); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, c); err != nil {
			return err
		}

		payload := event.BookingStatusPayload{
			BookingID:  b.ID.String(),
			CustomerID: b.CustomerID.String(),
			From:       string(c.From),
			To:         string(c.To),
			ActorID:    req.Actor.ID.String(),
			ActorRole:  req.Actor.Role.String(),
			Notes:      c.Notes,
		}
		if b.DeliveryPartnerID != nil {
			payload.DeliveryPartnerID = b.DeliveryPartnerID.String()
		}
		msg, err := newOutboxMessage(ctx, event.RoutingKeyFor(string(c.To)), payload, c.CreatedAt)
		if err != nil {
			return err
		}
		if err := tx.InsertOutbox(ctx, msg); err != nil {
			return err
		}

		out, change = b, c
		return nil
	})
	metrics.ObserveTransition(string(req.To), err)
	if err != nil {
		return nil, err
	}

	s.auditTransition(ctx, req, out, change)

	key := broadcast.BookingGroup(out.ID)
	var rc broadcast.Receipt
	if change.To == domain.StatusAssigned {
		rc = publish(ctx, s.bus, s.audit, key, broadcast.TypeAssignment, broadcast.NewAssignment(out, change))
	} else {
		rc = publish(ctx, s.bus, s.audit, key, broadcast.TypeStatusUpdate, broadcast.NewStatusUpdate(change))
	}
	return &Result{Booking: out, Change: change, Receipts: []broadcast.Receipt{rc}}, nil
}

func (s *BookingService) auditTransition(ctx context.Context, req domain.TransitionRequest, b *domain.Booking, c domain.StatusChange) {
	if s.audit == nil {
		return
	}
	switch c.To {
	case domain.StatusAssigned:
		s.audit.BookingAssigned(ctx, b.ID, req.PartnerID, req.Actor.ID)
	case domain.StatusCancelled:
		s.audit.BookingCancelled(ctx, b.ID, req.Actor.ID, c.Notes)
	default:
		s.audit.StatusChanged(ctx, c, req.Actor.Role)
	}
}
