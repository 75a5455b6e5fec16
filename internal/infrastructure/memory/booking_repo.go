package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/google/uuid"
)

// BookingRepo serialises transactions behind one lock. Writes are staged and
// applied only when fn returns nil.
type BookingRepo struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]domain.Booking
	history  map[uuid.UUID][]domain.StatusChange
	outbox   []domain.OutboxMessage
}

func NewBookingRepo() *BookingRepo {
	return &BookingRepo{
		bookings: make(map[uuid.UUID]domain.Booking),
		history:  make(map[uuid.UUID][]domain.StatusChange),
	}
}

func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound("booking not found")
	}
	return cloneBooking(b), nil
}

func (r *BookingRepo) List(ctx context.Context, f domain.BookingFilter) ([]*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Booking, 0)
	for _, b := range r.bookings {
		if f.CustomerID != nil && b.CustomerID != *f.CustomerID {
			continue
		}
		if f.DeliveryPartnerID != nil && (b.DeliveryPartnerID == nil || *b.DeliveryPartnerID != *f.DeliveryPartnerID) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *BookingRepo) ListHistory(ctx context.Context, bookingID uuid.UUID) ([]domain.StatusChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := r.history[bookingID]
	out := make([]domain.StatusChange, len(h))
	copy(out, h)
	return out, nil
}

func (r *BookingRepo) WithTx(ctx context.Context, fn func(tx domain.BookingTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &bookingTx{repo: r, staged: make(map[uuid.UUID]domain.Booking)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, b := range tx.staged {
		r.bookings[id] = b
	}
	for _, c := range tx.history {
		r.history[c.BookingID] = append(r.history[c.BookingID], c)
	}
	r.outbox = append(r.outbox, tx.outbox...)
	return nil
}

// Outbox returns a copy of every outbox row written so far.
func (r *BookingRepo) Outbox() []domain.OutboxMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.OutboxMessage, len(r.outbox))
	copy(out, r.outbox)
	return out
}

type bookingTx struct {
	repo    *BookingRepo
	staged  map[uuid.UUID]domain.Booking
	history []domain.StatusChange
	outbox  []domain.OutboxMessage
}

func (t *bookingTx) lookup(id uuid.UUID) (domain.Booking, bool) {
	if b, ok := t.staged[id]; ok {
		return b, true
	}
	b, ok := t.repo.bookings[id]
	return b, ok
}

func (t *bookingTx) Insert(ctx context.Context, b *domain.Booking) error {
	if _, exists := t.lookup(b.ID); exists {
		return domain.ErrValidation("booking already exists")
	}
	t.staged[b.ID] = *cloneBooking(*b)
	return nil
}

func (t *bookingTx) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, ok := t.lookup(id)
	if !ok {
		return nil, domain.ErrNotFound("booking not found")
	}
	return cloneBooking(b), nil
}

func (t *bookingTx) Update(ctx context.Context, b *domain.Booking) error {
	if _, ok := t.lookup(b.ID); !ok {
		return domain.ErrNotFound("booking not found")
	}
	t.staged[b.ID] = *cloneBooking(*b)
	return nil
}

func (t *bookingTx) AppendHistory(ctx context.Context, c domain.StatusChange) error {
	t.history = append(t.history, c)
	return nil
}

func (t *bookingTx) InsertOutbox(ctx context.Context, m domain.OutboxMessage) error {
	t.outbox = append(t.outbox, m)
	return nil
}

func cloneBooking(b domain.Booking) *domain.Booking {
	c := b
	if b.DeliveryPartnerID != nil {
		v := *b.DeliveryPartnerID
		c.DeliveryPartnerID = &v
	}
	if b.AssignedAt != nil {
		v := *b.AssignedAt
		c.AssignedAt = &v
	}
	if b.CancelledAt != nil {
		v := *b.CancelledAt
		c.CancelledAt = &v
	}
	if b.CancelledBy != nil {
		v := *b.CancelledBy
		c.CancelledBy = &v
	}
	return &c
}
