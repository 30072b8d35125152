package memory

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/reelgen/internal/domain"
)

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewEventBus()
	ctx := context.Background()

	var got []uint64
	err := bus.Subscribe(ctx, "progress", func(ctx context.Context, event domain.Event) error {
		got = append(got, event.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for seq := uint64(1); seq <= 4; seq++ {
		if err := bus.Publish(ctx, "progress", domain.Event{Type: domain.EventProgress, RunID: "run-1", Seq: seq}); err != nil {
			t.Fatalf("Publish(seq=%d) error = %v", seq, err)
		}
	}

	if len(got) != 4 {
		t.Fatalf("handler saw %d events, want 4", len(got))
	}
	for i, seq := range got {
		if seq != uint64(i+1) {
			t.Errorf("got[%d] = %d, want %d", i, seq, i+1)
		}
	}
}

func TestPublishIgnoresOtherTopics(t *testing.T) {
	bus := NewEventBus()
	ctx := context.Background()

	calls := 0
	if err := bus.Subscribe(ctx, "progress", func(ctx context.Context, event domain.Event) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := bus.Publish(ctx, "other", domain.Event{Type: domain.EventProgress}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if calls != 0 {
		t.Errorf("handler called %d times for a different topic, want 0", calls)
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus := NewEventBus()
	subCtx, cancel := context.WithCancel(context.Background())

	calls := 0
	if err := bus.Subscribe(subCtx, "progress", func(ctx context.Context, event domain.Event) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	cancel()
	// Unsubscription runs in a goroutine; poll until it lands
	for i := 0; i < 100; i++ {
		bus.mu.RLock()
		n := len(bus.subscribers["progress"])
		bus.mu.RUnlock()
		if n == 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := bus.Publish(context.Background(), "progress", domain.Event{Type: domain.EventProgress}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if calls != 0 {
		t.Errorf("handler called %d times after unsubscribe, want 0", calls)
	}
}

func TestCloseDropsSubscribers(t *testing.T) {
	bus := NewEventBus()
	ctx := context.Background()

	calls := 0
	if err := bus.Subscribe(ctx, "progress", func(ctx context.Context, event domain.Event) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := bus.Publish(ctx, "progress", domain.Event{Type: domain.EventProgress}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if calls != 0 {
		t.Errorf("handler called %d times after Close, want 0", calls)
	}
}
