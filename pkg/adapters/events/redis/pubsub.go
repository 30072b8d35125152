package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

// channelPrefix namespaces bus topics in a shared Redis
const channelPrefix = "reelgen:"

// EventBus implements ports.EventBus on Redis pub/sub. Events published by
// worker processes reach the API process's WebSocket hub through it.
type EventBus struct {
	client *redis.Client
	logger *zap.Logger

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewEventBus creates a new Redis pub/sub event bus
func NewEventBus(client *redis.Client, logger *zap.Logger) *EventBus {
	return &EventBus{
		client: client,
		logger: logger,
	}
}

// Publish marshals the event and publishes it on the topic's channel
func (e *EventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := e.client.Publish(ctx, channelPrefix+topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Subscribe consumes the topic's channel until ctx is cancelled
func (e *EventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	sub := e.client.Subscribe(ctx, channelPrefix+topic)

	// Confirm the subscription actually started before returning
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	e.mu.Lock()
	e.subs = append(e.subs, sub)
	e.mu.Unlock()

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok || msg == nil {
					return
				}

				var event domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					e.logger.Warn("skipping malformed event payload",
						zap.String("channel", msg.Channel),
						zap.Error(err))
					continue
				}

				if err := handler(ctx, event); err != nil {
					e.logger.Warn("event handler failed",
						zap.String("run_id", event.RunID),
						zap.Error(err))
				}
			}
		}
	}()

	return nil
}

// Close closes all active subscriptions. The Redis client is owned by the
// caller and stays open.
func (e *EventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, sub := range e.subs {
		_ = sub.Close()
	}
	e.subs = nil
	return nil
}
