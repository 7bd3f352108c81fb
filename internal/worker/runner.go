package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/hmis-api/internal/config"
	"github.com/jwalitptl/hmis-api/internal/email"
	"github.com/jwalitptl/hmis-api/internal/repository"
	"github.com/jwalitptl/hmis-api/internal/service/notification"
	"github.com/jwalitptl/hmis-api/pkg/messaging"
	"github.com/jwalitptl/hmis-api/pkg/messaging/redis"
	"github.com/jwalitptl/hmis-api/pkg/metrics"
	"github.com/jwalitptl/hmis-api/pkg/worker"
)

// Runner owns the background jobs: outbox delivery, notifications and
// outbox cleanup.
type Runner struct {
	processor *worker.OutboxProcessor
	cleaner   *worker.OutboxCleaner
	broker    messaging.Broker
	logger    zerolog.Logger
}

// NewRunner wires the jobs for store. With an empty redis.url events are
// published to an in-process broker.
func NewRunner(ctx context.Context, cfg *config.Config, store repository.Store, m *metrics.Metrics, logger zerolog.Logger) (*Runner, error) {
	var broker messaging.Broker
	if cfg.Redis.URL == "" {
		logger.Warn().Msg("redis.url not set, publishing events in-process")
		broker = messaging.NewMemoryBroker()
	} else {
		rb, err := redis.NewRedisBroker(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, logger, m)
		if err != nil {
			return nil, err
		}
		broker = rb
	}

	processor, err := worker.NewOutboxProcessor(
		store,
		messaging.NewPublisher(broker, cfg.Redis.Channel),
		worker.OutboxProcessorConfig{
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			RetryDelay:    cfg.Outbox.RetryDelay,
			MaxAttempts:   cfg.Outbox.MaxAttempts,
			ClaimTTL:      cfg.Outbox.ClaimTTL,
		},
		logger,
		m,
	)
	if err != nil {
		broker.Close()
		return nil, fmt.Errorf("failed to create outbox processor: %w", err)
	}

	notification.NewService(mailer(cfg.SMTP, logger), logger).Register(processor)

	return &Runner{
		processor: processor,
		cleaner:   worker.NewOutboxCleaner(store.Outbox(), cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, logger),
		broker:    broker,
		logger:    logger,
	}, nil
}

func mailer(cfg config.SMTPConfig, logger zerolog.Logger) email.Service {
	if cfg.Enabled {
		return email.NewSMTPService(cfg)
	}
	return &email.LogService{Sent: func(to, subject, _ string) {
		logger.Info().Str("to", to).Str("subject", subject).Msg("smtp disabled, email not sent")
	}}
}

// Run blocks until ctx is cancelled and every job has returned
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		r.cleaner.Start(ctx)
	}()
	wg.Wait()
}

// Ping reports broker health when the broker supports it
func (r *Runner) Ping(ctx context.Context) error {
	if p, ok := r.broker.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (r *Runner) Close() error {
	return r.broker.Close()
}
