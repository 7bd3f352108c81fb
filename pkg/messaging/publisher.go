package messaging

import (
	"context"
	"fmt"
)

// Publisher sends event envelopes to a fixed channel on a Broker
type Publisher struct {
	broker  Broker
	channel string
}

func NewPublisher(broker Broker, channel string) *Publisher {
	return &Publisher{broker: broker, channel: channel}
}

func (p *Publisher) Publish(ctx context.Context, msg *Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if err := p.broker.Publish(ctx, p.channel, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Type, err)
	}
	return nil
}
