package postgres

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/logger"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/metrics"
	"github.com/google/uuid"
)

const (
	outboxBatchSize   = 20
	outboxMaxAttempts = 12 // ~ up to hours with exponential backoff
	outboxPoll        = 500 * time.Millisecond
	outboxInFlight    = 15 * time.Second
)

// EventPublisher delivers one outbox row. messageID is stable across retries.
type EventPublisher interface {
	PublishEvent(ctx context.Context, routingKey, messageID string, body []byte) error
}

// backoff: exponential with jitter, bounded
func computeNextRetry(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// base: 2^attempt seconds, cap at 30 minutes
	sec := math.Pow(2, float64(attempt))
	if sec < 5 {
		sec = 5
	}
	if sec > 1800 {
		sec = 1800
	}

	d := time.Duration(sec) * time.Second

	// jitter +/-10%
	j := time.Duration(rand.Int63n(int64(d/5))) - d/10
	return d + j
}

type outboxRow struct {
	ID         uuid.UUID
	MessageID  uuid.UUID
	RoutingKey string
	Payload    []byte
	Attempt    int
}

// StartOutboxWorker polls pending rows until ctx is done.
func (r *Repository) StartOutboxWorker(ctx context.Context, pub EventPublisher, al *audit.Logger) {
	go func() {
		log := logger.Logger.With().Str("component", "outbox_worker").Logger()

		ticker := time.NewTicker(outboxPoll)
		defer ticker.Stop()

		var lastErr string
		var lastAt time.Time

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopped")
				return
			case <-ticker.C:
				if err := r.processOutboxBatch(ctx, pub, al); err != nil {
					if err.Error() != lastErr || time.Since(lastAt) > 10*time.Second {
						log.Warn().Err(err).Msg("outbox batch failed")
						lastErr = err.Error()
						lastAt = time.Now()
					}
				} else {
					lastErr = ""
				}
			}
		}
	}()
}

// processOutboxBatch claims rows in a short tx, pushing next_retry_at forward so a second
// worker skips them, then publishes outside the tx.
func (r *Repository) processOutboxBatch(ctx context.Context, pub EventPublisher, al *audit.Logger) error {
	claimCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(claimCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(claimCtx) }()

	rows, err := tx.Query(claimCtx, `
		SELECT id, message_id, routing_key, payload, attempt
		FROM outbox
		WHERE status = 'pending'
		  AND next_retry_at <= NOW()
		ORDER BY next_retry_at ASC, occurred_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, outboxBatchSize)
	if err != nil {
		return err
	}

	var batch []outboxRow
	for rows.Next() {
		var m outboxRow
		if err := rows.Scan(&m.ID, &m.MessageID, &m.RoutingKey, &m.Payload, &m.Attempt); err != nil {
			rows.Close()
			return err
		}
		batch = append(batch, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(batch) == 0 {
		return tx.Commit(claimCtx)
	}

	inFlightUntil := time.Now().Add(outboxInFlight)
	for _, m := range batch {
		if _, err := tx.Exec(claimCtx, `UPDATE outbox SET next_retry_at = $2 WHERE id = $1`, m.ID, inFlightUntil); err != nil {
			return err
		}
	}
	if err := tx.Commit(claimCtx); err != nil {
		return err
	}

	for _, m := range batch {
		r.publishOne(ctx, pub, al, m)
	}
	return nil
}

func (r *Repository) publishOne(ctx context.Context, pub EventPublisher, al *audit.Logger, m outboxRow) {
	log := logger.Logger.With().Str("component", "outbox_worker").Logger()

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := pub.PublishEvent(pubCtx, m.RoutingKey, m.MessageID.String(), m.Payload)
	cancel()

	resCtx, cancelRes := context.WithTimeout(ctx, 3*time.Second)
	defer cancelRes()

	if err == nil {
		_, _ = r.pool.Exec(resCtx, `UPDATE outbox SET status = 'sent', last_error = NULL WHERE id = $1`, m.ID)
		metrics.OutboxPublished.WithLabelValues("sent").Inc()
		if al != nil {
			al.OutboxMessageSent(ctx, m.MessageID.String(), m.RoutingKey)
		}
		return
	}

	next, dead := nextOutboxState(m.Attempt)
	if dead {
		_, _ = r.pool.Exec(resCtx, `
			UPDATE outbox
			SET status = 'dead',
			    attempt = $2,
			    last_error = $3
			WHERE id = $1
		`, m.ID, next, err.Error())
		metrics.OutboxPublished.WithLabelValues("dead").Inc()
		if al != nil {
			al.OutboxMessageDead(ctx, m.MessageID.String(), m.RoutingKey, next)
		}
		return
	}

	delay := computeNextRetry(next)
	_, _ = r.pool.Exec(resCtx, `
		UPDATE outbox
		SET attempt = $2,
		    next_retry_at = NOW() + make_interval(secs => $3),
		    last_error = $4
		WHERE id = $1
	`, m.ID, next, delay.Seconds(), err.Error())
	metrics.OutboxPublished.WithLabelValues("retry").Inc()

	log.Warn().
		Err(err).
		Str("outbox_id", m.ID.String()).
		Str("message_id", m.MessageID.String()).
		Str("routing_key", m.RoutingKey).
		Int("attempt", next).
		Dur("retry_in", delay).
		Msg("outbox publish failed; scheduled retry")
}

// nextOutboxState returns the attempt count after a failure and whether the row is now dead.
func nextOutboxState(attempt int) (int, bool) {
	next := attempt + 1
	return next, next >= outboxMaxAttempts
}
