package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherDeliversEnvelope(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewMemoryBroker()
	defer broker.Close()

	ch, err := broker.Subscribe(ctx, "hmis.events")
	require.NoError(t, err)

	msg := &Message{
		ID:          uuid.New(),
		Type:        "appointment.booked",
		AggregateID: uuid.New(),
		OccurredAt:  time.Now().UTC(),
		Payload:     json.RawMessage(`{"duration":30}`),
	}
	require.NoError(t, NewPublisher(broker, "hmis.events").Publish(ctx, msg))

	select {
	case raw := <-ch:
		var got Message
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, msg.ID, got.ID)
		assert.Equal(t, "appointment.booked", got.Type)
		assert.JSONEq(t, `{"duration":30}`, string(got.Payload))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestPublisherRejectsNil(t *testing.T) {
	assert.Error(t, NewPublisher(NewMemoryBroker(), "c").Publish(context.Background(), nil))
}

func TestMemoryBrokerClosed(t *testing.T) {
	broker := NewMemoryBroker()
	require.NoError(t, broker.Close())
	assert.Error(t, broker.Publish(context.Background(), "c", "x"))
}
