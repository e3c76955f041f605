package events

import (
	"context"
	"fmt"
	"sync"

	"euphony/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Handler consumes one event. Its error is logged by the Bus and never
// reaches the publisher.
type Handler func(ctx context.Context, event Event) error

// Bus is an in-process publish/subscribe dispatcher. Publish runs handlers
// synchronously on the caller's goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *logrus.Entry
	metrics  *metrics.Metrics
}

// NewBus creates an empty bus.
func NewBus(logger *logrus.Entry, m *metrics.Metrics) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
		metrics:  m,
	}
}

// Subscribe registers h for events named name. The wildcard "*" receives
// every event.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish delivers event to its subscribers. Handler errors and panics are
// logged and counted; Publish itself never fails.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Name()])+len(b.handlers["*"]))
	handlers = append(handlers, b.handlers[event.Name()]...)
	handlers = append(handlers, b.handlers["*"]...)
	b.mu.RUnlock()

	b.metrics.EventPublished(event.Name())
	b.logger.WithField("event", event.Name()).Debug("publishing event")

	for _, h := range handlers {
		if err := b.dispatch(ctx, h, event); err != nil {
			b.metrics.EventHandlerFailed(event.Name())
			b.logger.WithField("event", event.Name()).WithError(err).Error("event handler failed")
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, event)
}
