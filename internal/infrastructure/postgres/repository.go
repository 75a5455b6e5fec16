package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// querier is satisfied by both the pool and a pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const bookingColumns = `
	id, customer_id, delivery_partner_id, status,
	food_items, pickup_address, delivery_address, phone_number,
	total_amount_cents, special_instructions,
	created_at, updated_at, assigned_at, cancelled_at, cancelled_by`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	var status string
	err := row.Scan(
		&b.ID, &b.CustomerID, &b.DeliveryPartnerID, &status,
		&b.FoodItems, &b.PickupAddress, &b.DeliveryAddress, &b.PhoneNumber,
		&b.AmountCents, &b.SpecialInstructions,
		&b.CreatedAt, &b.UpdatedAt, &b.AssignedAt, &b.CancelledAt, &b.CancelledBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound("booking not found")
		}
		return nil, err
	}
	b.Status = domain.Status(status)
	return &b, nil
}

func getBooking(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*domain.Booking, error) {
	sql := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	return scanBooking(q.QueryRow(ctx, sql, id))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return getBooking(ctx, r.pool, id, false)
}

func (r *Repository) List(ctx context.Context, f domain.BookingFilter) ([]*domain.Booking, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE ($1::uuid IS NULL OR customer_id = $1)
		  AND ($2::uuid IS NULL OR delivery_partner_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, f.CustomerID, f.DeliveryPartnerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) ListHistory(ctx context.Context, bookingID uuid.UUID) ([]domain.StatusChange, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, booking_id, from_status, to_status, updated_by, notes, created_at
		FROM booking_status_history
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.StatusChange, 0)
	for rows.Next() {
		var c domain.StatusChange
		var from, to string
		if err := rows.Scan(&c.ID, &c.BookingID, &from, &to, &c.UpdatedBy, &c.Notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.From, c.To = domain.Status(from), domain.Status(to)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx domain.BookingTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		// Safety: in case fn panics, rollback to avoid leaked tx.
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) Insert(ctx context.Context, b *domain.Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		b.ID, b.CustomerID, b.DeliveryPartnerID, string(b.Status),
		b.FoodItems, b.PickupAddress, b.DeliveryAddress, b.PhoneNumber,
		b.AmountCents, b.SpecialInstructions,
		b.CreatedAt, b.UpdatedAt, b.AssignedAt, b.CancelledAt, b.CancelledBy,
	)
	return err
}

func (t *txRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return getBooking(ctx, t.tx, id, true)
}

func (t *txRepo) Update(ctx context.Context, b *domain.Booking) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET delivery_partner_id = $2,
		    status = $3,
		    updated_at = $4,
		    assigned_at = $5,
		    cancelled_at = $6,
		    cancelled_by = $7
		WHERE id = $1
	`, b.ID, b.DeliveryPartnerID, string(b.Status), b.UpdatedAt, b.AssignedAt, b.CancelledAt, b.CancelledBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("booking not found")
	}
	return nil
}

func (t *txRepo) AppendHistory(ctx context.Context, c domain.StatusChange) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO booking_status_history (id, booking_id, from_status, to_status, updated_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.BookingID, string(c.From), string(c.To), c.UpdatedBy, c.Notes, c.CreatedAt)
	return err
}

func (t *txRepo) InsertOutbox(ctx context.Context, m domain.OutboxMessage) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO outbox (message_id, trace_id, routing_key, payload, status, attempt, next_retry_at, occurred_at)
		VALUES ($1, $2, $3, $4::jsonb, 'pending', 0, $5, $5)
	`, m.MessageID, m.TraceID, m.RoutingKey, string(m.Payload), m.OccurredAt.UTC())
	return err
}
