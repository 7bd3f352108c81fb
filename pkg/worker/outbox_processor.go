package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/internal/repository"
	"github.com/jwalitptl/hmis-api/pkg/messaging"
	"github.com/jwalitptl/hmis-api/pkg/metrics"
)

// EventHandler reacts to a delivered outbox event
type EventHandler interface {
	Handle(ctx context.Context, event *model.OutboxEvent) error
}

type EventHandlerFunc func(ctx context.Context, event *model.OutboxEvent) error

func (f EventHandlerFunc) Handle(ctx context.Context, event *model.OutboxEvent) error {
	return f(ctx, event)
}

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	MaxAttempts   int
	// ClaimTTL is how long a claimed event is hidden from other pollers.
	// Zero means DefaultClaimTTL.
	ClaimTTL time.Duration
}

const DefaultClaimTTL = 5 * time.Minute

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("BatchSize must be greater than 0")
	case c.PollInterval <= 0:
		return errors.New("PollInterval must be greater than 0")
	case c.RetryAttempts <= 0:
		return errors.New("RetryAttempts must be greater than 0")
	case c.RetryDelay <= 0:
		return errors.New("RetryDelay must be greater than 0")
	case c.MaxAttempts <= 0:
		return errors.New("MaxAttempts must be greater than 0")
	case c.ClaimTTL < 0:
		return errors.New("ClaimTTL must not be negative")
	}
	return nil
}

// OutboxProcessor polls pending outbox events, publishes them and runs the
// registered handlers. Events are marked processed only after every step
// succeeds, so delivery is at least once. No store transaction is open
// while publishing or running handlers.
type OutboxProcessor struct {
	store     repository.Store
	publisher *messaging.Publisher
	handlers  map[string][]EventHandler
	config    OutboxProcessorConfig
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

func NewOutboxProcessor(
	store repository.Store,
	publisher *messaging.Publisher,
	config OutboxProcessorConfig,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}
	if config.ClaimTTL == 0 {
		config.ClaimTTL = DefaultClaimTTL
	}

	return &OutboxProcessor{
		store:     store,
		publisher: publisher,
		handlers:  make(map[string][]EventHandler),
		config:    config,
		logger:    logger.With().Str("component", "outbox-processor").Logger(),
		metrics:   metrics,
	}, nil
}

// Handle registers h for eventType. Not safe to call after Start.
func (p *OutboxProcessor) Handle(eventType string, h EventHandler) {
	p.handlers[eventType] = append(p.handlers[eventType], h)
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info().Msg("starting outbox processor")

	for {
		if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error().Err(err).Msg("failed to process events")
		}

		select {
		case <-ctx.Done():
			p.logger.Info().Msg("shutting down outbox processor")
			return
		case <-ticker.C:
		}
	}
}

// ProcessBatch handles one batch of pending events and returns how many
// were delivered.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	outbox := p.store.Outbox()
	events, err := outbox.ClaimPending(ctx, p.config.BatchSize, p.config.ClaimTTL)
	if err != nil {
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}
	p.metrics.OutboxQueueSize.Set(float64(len(events)))

	delivered := 0
	for _, event := range events {
		if err := p.deliver(ctx, event); err != nil {
			p.metrics.OutboxEventsFailed.Inc()
			p.logger.Error().Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Int("attempts", event.Attempts+1).
				Msg("failed to deliver event")

			if err := outbox.MarkFailed(ctx, event.ID, err.Error(), p.config.MaxAttempts); err != nil {
				return delivered, fmt.Errorf("failed to mark event failed: %w", err)
			}
			continue
		}

		if err := outbox.MarkProcessed(ctx, event.ID); err != nil {
			return delivered, fmt.Errorf("failed to mark event processed: %w", err)
		}
		p.metrics.OutboxEventsProcessed.Inc()
		delivered++
	}
	return delivered, nil
}

func (p *OutboxProcessor) deliver(ctx context.Context, event *model.OutboxEvent) error {
	if p.publisher != nil {
		msg := &messaging.Message{
			ID:          event.ID,
			Type:        event.EventType,
			AggregateID: event.AggregateID,
			OccurredAt:  event.CreatedAt,
			Payload:     event.Payload,
		}
		if err := p.retry(ctx, event, func() error { return p.publisher.Publish(ctx, msg) }); err != nil {
			return err
		}
	}

	for _, h := range p.handlers[event.EventType] {
		if err := p.retry(ctx, event, func() error { return h.Handle(ctx, event) }); err != nil {
			return fmt.Errorf("handler failed: %w", err)
		}
	}
	return nil
}

func (p *OutboxProcessor) retry(ctx context.Context, event *model.OutboxEvent, op func() error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.config.RetryDelay
	expo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(p.config.RetryAttempts-1)), ctx)
	return backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		p.logger.Warn().Err(err).
			Str("event_id", event.ID.String()).
			Dur("wait", wait).
			Msg("retrying event delivery")
	})
}
