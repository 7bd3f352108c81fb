package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hmis-api/internal/config"
	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/internal/repository/memory"
	"github.com/jwalitptl/hmis-api/pkg/metrics"
)

func runnerConfig() *config.Config {
	return &config.Config{
		Redis: config.RedisConfig{Channel: "hmis.events"},
		Outbox: config.OutboxConfig{
			BatchSize:       10,
			PollInterval:    10 * time.Millisecond,
			RetryAttempts:   1,
			RetryDelay:      time.Millisecond,
			MaxAttempts:     3,
			Retention:       time.Hour,
			CleanupInterval: time.Hour,
		},
	}
}

func TestRunnerDeliversPendingEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := memory.NewStore()

	r, err := NewRunner(ctx, runnerConfig(), store, metrics.NewTestMetrics(), zerolog.Nop())
	require.NoError(t, err)
	defer r.Close()
	assert.NoError(t, r.Ping(ctx))

	event, err := model.NewOutboxEvent(model.EventAppointmentBooked, uuid.New(), &model.AppointmentEventPayload{
		AppointmentID: uuid.New(),
		PatientEmail:  "jane@example.com",
	})
	require.NoError(t, err)
	require.NoError(t, store.Outbox().Create(ctx, event))

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		pending, err := store.Outbox().GetPending(context.Background(), 10)
		return err == nil && len(pending) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunnerRejectsInvalidConfig(t *testing.T) {
	cfg := runnerConfig()
	cfg.Outbox.BatchSize = 0

	_, err := NewRunner(context.Background(), cfg, memory.NewStore(), metrics.NewTestMetrics(), zerolog.Nop())
	assert.Error(t, err)
}
