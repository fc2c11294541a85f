package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID int64
	UserID      int64
	EventType   string
	Payload     []byte
	Attempts    int
	CreatedAt   time.Time
}

// LeaseEvents claims up to limit due events and pushes their next attempt past leaseUntil,
// so a second poller skips them while this one is publishing.
func (r *Repository) LeaseEvents(ctx context.Context, limit, maxAttempts int, leaseUntil time.Time) ([]*OutboxEvent, error) {
	var events []*OutboxEvent
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, aggregate_id, user_id, event_type, payload, attempts, created_at
			FROM cart_outbox
			WHERE processed_at IS NULL AND attempts < $1 AND next_attempt_at <= NOW()
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED`, maxAttempts, limit)
		if err != nil {
			return fmt.Errorf("query outbox: %w", err)
		}
		defer rows.Close()

		ids := make([]string, 0, limit)
		for rows.Next() {
			var e OutboxEvent
			if err := rows.Scan(&e.ID, &e.AggregateID, &e.UserID, &e.EventType, &e.Payload, &e.Attempts, &e.CreatedAt); err != nil {
				return fmt.Errorf("scan outbox event: %w", err)
			}
			events = append(events, &e)
			ids = append(ids, e.ID.String())
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("row iteration error: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE cart_outbox SET next_attempt_at = $1 WHERE id = ANY($2::uuid[])`,
			leaseUntil, pq.Array(ids)); err != nil {
			return fmt.Errorf("lease outbox events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *Repository) MarkEventProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE cart_outbox SET processed_at = NOW(), last_error = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

// MarkEventFailed records a failed publish and schedules the next attempt.
func (r *Repository) MarkEventFailed(ctx context.Context, id uuid.UUID, reason string, nextAttempt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE cart_outbox SET attempts = attempts + 1, last_error = $1, next_attempt_at = $2
		WHERE id = $3`, reason, nextAttempt, id)
	if err != nil {
		return fmt.Errorf("mark event failed: %w", err)
	}
	return nil
}

// CountParkedEvents counts unprocessed events that exhausted their attempts.
func (r *Repository) CountParkedEvents(ctx context.Context, maxAttempts int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cart_outbox WHERE processed_at IS NULL AND attempts >= $1`, maxAttempts).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count parked events: %w", err)
	}
	return n, nil
}
