package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/hmis-api/internal/repository"
)

// OutboxCleaner removes processed outbox events older than the retention
type OutboxCleaner struct {
	repo      repository.OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

func NewOutboxCleaner(repo repository.OutboxRepository, retention, interval time.Duration, logger zerolog.Logger) *OutboxCleaner {
	return &OutboxCleaner{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger.With().Str("component", "outbox-cleaner").Logger(),
	}
}

func (w *OutboxCleaner) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				w.logger.Error().Err(err).Msg("failed to clean up outbox")
			}
		}
	}
}

func (w *OutboxCleaner) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-w.retention)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up outbox events: %w", err)
	}

	if rows > 0 {
		w.logger.Info().Int64("rows", rows).Time("cutoff", cutoff).Msg("cleaned up processed outbox events")
	}
	return rows, nil
}
