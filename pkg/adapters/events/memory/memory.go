package memory

import (
	"context"
	"sync"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

// EventBus implements ports.EventBus with in-process delivery.
// Used when no REDIS_URL is configured, and in tests.
type EventBus struct {
	subscribers map[string][]subscription
	nextID      uint64
	mu          sync.RWMutex
}

type subscription struct {
	id      uint64
	handler ports.EventHandler
}

// NewEventBus creates a new in-process event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]subscription),
	}
}

// Publish delivers an event to all subscribers of a topic. Delivery is
// synchronous so a subscriber observes events in emission order; handlers
// must not block.
func (e *EventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	handlers := make([]subscription, len(e.subscribers[topic]))
	copy(handlers, e.subscribers[topic])
	e.mu.RUnlock()

	for _, sub := range handlers {
		// Handler errors are a subscriber concern, not a publisher one
		_ = sub.handler(ctx, event)
	}

	return nil
}

// Subscribe registers a handler for a topic until ctx is cancelled
func (e *EventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subscribers[topic] = append(e.subscribers[topic], subscription{id: id, handler: handler})
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.unsubscribe(topic, id)
	}()

	return nil
}

// Close drops all subscriptions
func (e *EventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.subscribers = make(map[string][]subscription)
	return nil
}

// unsubscribe removes one subscription from a topic
func (e *EventBus) unsubscribe(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subscribers[topic]
	for i, sub := range subs {
		if sub.id == id {
			e.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}
