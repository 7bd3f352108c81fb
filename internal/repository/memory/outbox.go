package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/internal/repository"
)

type outboxRepository struct {
	sh *shared
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.Status = model.OutboxStatusPending
	r.sh.data.outbox[event.ID] = *event
	return nil
}

func (r *outboxRepository) GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.sh.mu.RLock()
	defer r.sh.mu.RUnlock()

	var events []*model.OutboxEvent
	for _, e := range r.sh.data.outbox {
		if e.Status != model.OutboxStatusPending {
			continue
		}
		e := e
		events = append(events, &e)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	now := time.Now()
	var events []*model.OutboxEvent
	for _, e := range r.sh.data.outbox {
		if e.Status != model.OutboxStatusPending || (e.ClaimedUntil != nil && e.ClaimedUntil.After(now)) {
			continue
		}
		e := e
		events = append(events, &e)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}

	until := now.Add(lease)
	for _, e := range events {
		e.ClaimedUntil = &until
		r.sh.data.outbox[e.ID] = *e
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	e, ok := r.sh.data.outbox[id]
	if !ok {
		return fmt.Errorf("outbox event: %w", repository.ErrNotFound)
	}
	now := time.Now()
	e.Status = model.OutboxStatusProcessed
	e.ProcessedAt = &now
	e.Attempts++
	r.sh.data.outbox[id] = e
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, maxAttempts int) error {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	e, ok := r.sh.data.outbox[id]
	if !ok {
		return fmt.Errorf("outbox event: %w", repository.ErrNotFound)
	}
	e.Attempts++
	e.LastError = &errMsg
	e.ClaimedUntil = nil
	if e.Attempts >= maxAttempts {
		e.Status = model.OutboxStatusFailed
	}
	r.sh.data.outbox[id] = e
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	var deleted int64
	for id, e := range r.sh.data.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.sh.data.outbox, id)
			deleted++
		}
	}
	return deleted, nil
}
