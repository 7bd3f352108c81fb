package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/model"
)

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, aggregate_id, payload, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.Status = model.OutboxStatusPending

	_, err := r.q.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.AggregateID,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", translateError(err))
	}
	return nil
}

const outboxColumns = `id, event_type, aggregate_id, payload, status, attempts,
	last_error, created_at, processed_at, claimed_until`

func (r *outboxRepository) GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	var events []*model.OutboxEvent
	if err := r.q.SelectContext(ctx, &events, query, model.OutboxStatusPending, limit); err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", translateError(err))
	}
	return events, nil
}

// ClaimPending takes the lease in one statement. Rows locked by a concurrent
// claim are skipped.
func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET claimed_until = NOW() + $3::interval
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = $1
			AND (claimed_until IS NULL OR claimed_until < NOW())
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns
	interval := fmt.Sprintf("%d milliseconds", lease.Milliseconds())

	var events []*model.OutboxEvent
	if err := r.q.SelectContext(ctx, &events, query, model.OutboxStatusPending, limit, interval); err != nil {
		return nil, fmt.Errorf("failed to claim pending events: %w", translateError(err))
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = $1, processed_at = NOW(), attempts = attempts + 1
		WHERE id = $2
	`
	result, err := r.q.ExecContext(ctx, query, model.OutboxStatusProcessed, id)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", translateError(err))
	}
	return expectRow(result, "outbox event")
}

// MarkFailed records the error; the event stays pending until maxAttempts
func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, maxAttempts int) error {
	query := `
		UPDATE outbox_events
		SET attempts = attempts + 1,
			last_error = $1,
			status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE status END,
			claimed_until = NULL
		WHERE id = $4
	`
	result, err := r.q.ExecContext(ctx, query, errMsg, maxAttempts, model.OutboxStatusFailed, id)
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", translateError(err))
	}
	return expectRow(result, "outbox event")
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = $1
		AND processed_at < $2
	`
	result, err := r.q.ExecContext(ctx, query, model.OutboxStatusProcessed, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", translateError(err))
	}
	return result.RowsAffected()
}
