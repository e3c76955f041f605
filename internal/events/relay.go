package events

import (
	"context"
	"fmt"
)

// Publisher is the subset of the RabbitMQ client the relay needs.
type Publisher interface {
	PublishJSON(routingKey string, payload interface{}) error
}

// AMQPRelay returns a handler that forwards every event to the broker, using
// the event name as routing key. It only notifies other subsystems; nothing
// in this service depends on the delivery.
func AMQPRelay(pub Publisher) Handler {
	return func(ctx context.Context, event Event) error {
		if err := pub.PublishJSON(event.Name(), event); err != nil {
			return fmt.Errorf("relay %s: %w", event.Name(), err)
		}
		return nil
	}
}
