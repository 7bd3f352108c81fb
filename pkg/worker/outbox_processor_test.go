package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hmis-api/internal/model"
	"github.com/jwalitptl/hmis-api/internal/repository"
	"github.com/jwalitptl/hmis-api/internal/repository/memory"
	"github.com/jwalitptl/hmis-api/pkg/messaging"
	"github.com/jwalitptl/hmis-api/pkg/metrics"
)

type failingBroker struct {
	calls atomic.Int32
}

func (b *failingBroker) Publish(context.Context, string, interface{}) error {
	b.calls.Add(1)
	return errors.New("connection refused")
}

func (b *failingBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *failingBroker) Close() error { return nil }

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		MaxAttempts:   2,
	}
}

func seedEvent(t *testing.T, store *memory.Store, eventType string) *model.OutboxEvent {
	t.Helper()
	event, err := model.NewOutboxEvent(eventType, uuid.New(), map[string]int{"duration": 30})
	require.NoError(t, err)
	require.NoError(t, store.Outbox().Create(context.Background(), event))
	return event
}

func TestProcessBatchPublishesAndRunsHandlers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	broker := messaging.NewMemoryBroker()
	sub, err := broker.Subscribe(ctx, "events")
	require.NoError(t, err)

	p, err := NewOutboxProcessor(store, messaging.NewPublisher(broker, "events"), testConfig(), zerolog.Nop(), metrics.NewTestMetrics())
	require.NoError(t, err)

	var handled []string
	p.Handle(model.EventAppointmentBooked, EventHandlerFunc(func(_ context.Context, e *model.OutboxEvent) error {
		handled = append(handled, e.EventType)
		return nil
	}))

	seedEvent(t, store, model.EventAppointmentBooked)
	seedEvent(t, store, model.EventPatientRegistered)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{model.EventAppointmentBooked}, handled)

	var msg messaging.Message
	require.NoError(t, json.Unmarshal(<-sub, &msg))
	assert.NotEmpty(t, msg.Type)

	pending, err := store.Outbox().GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessBatchMarksFailures(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	broker := &failingBroker{}

	p, err := NewOutboxProcessor(store, messaging.NewPublisher(broker, "events"), testConfig(), zerolog.Nop(), metrics.NewTestMetrics())
	require.NoError(t, err)

	seedEvent(t, store, model.EventAppointmentCancelled)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(2), broker.calls.Load())

	pending, err := store.Outbox().GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	require.NotNil(t, pending[0].LastError)

	// second round exhausts MaxAttempts
	_, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	pending, err = store.Outbox().GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessBatchDeliversOutsideStoreTransaction(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	p, err := NewOutboxProcessor(store, nil, testConfig(), zerolog.Nop(), metrics.NewTestMetrics())
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	p.Handle(model.EventAppointmentBooked, EventHandlerFunc(func(context.Context, *model.OutboxEvent) error {
		close(started)
		<-release
		return nil
	}))
	seedEvent(t, store, model.EventAppointmentBooked)

	result := make(chan error, 1)
	go func() {
		_, err := p.ProcessBatch(ctx)
		result <- err
	}()
	<-started

	// a booking-sized transaction must not wait on the slow handler
	txDone := make(chan error, 1)
	go func() {
		txDone <- store.Transaction(ctx, func(repository.Store) error { return nil })
	}()
	select {
	case err := <-txDone:
		assert.NoError(t, err)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("transaction blocked behind event delivery")
	}

	// a second poller does not pick up the claimed event
	claimed, err := store.Outbox().ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	close(release)
	require.NoError(t, <-result)

	pending, err := store.Outbox().GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestClaimPendingLease(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	event := seedEvent(t, store, model.EventAppointmentCancelled)

	claimed, err := store.Outbox().ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, event.ID, claimed[0].ID)

	again, err := store.Outbox().ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	// a failed attempt releases the lease for the next round
	require.NoError(t, store.Outbox().MarkFailed(ctx, event.ID, "smtp timeout", 5))
	again, err = store.Outbox().ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Len(t, again, 1)

	// an expired lease is claimable
	require.NoError(t, store.Outbox().MarkFailed(ctx, event.ID, "smtp timeout", 5))
	_, err = store.Outbox().ClaimPending(ctx, 10, -time.Second)
	require.NoError(t, err)
	again, err = store.Outbox().ClaimPending(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Len(t, again, 1)
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 0
	_, err := NewOutboxProcessor(memory.NewStore(), nil, cfg, zerolog.Nop(), metrics.NewTestMetrics())
	assert.Error(t, err)
}

func TestOutboxCleaner(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	event := seedEvent(t, store, model.EventPatientUpdated)
	require.NoError(t, store.Outbox().MarkProcessed(ctx, event.ID))

	cleaner := NewOutboxCleaner(store.Outbox(), -time.Minute, time.Hour, zerolog.Nop())
	rows, err := cleaner.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
}
