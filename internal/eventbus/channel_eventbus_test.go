package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestChannelEventBus_PublishToSubscriber(t *testing.T) {
	bus := NewChannelEventBus()
	defer bus.Close()

	var mu sync.Mutex
	var seen []EventType
	_, err := bus.Subscribe([]EventType{EventRoundStarted}, func(ctx context.Context, event Event) error {
		mu.Lock()
		seen = append(seen, event.Type())
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	ctx := context.Background()
	if err := bus.Publish(ctx, NewEvent(EventRoundStarted, 1, "test", nil)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	// A non-subscribed type must not reach the handler.
	if err := bus.Publish(ctx, NewEvent(EventRoundCompleted, 1, "test", nil)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if seen[0] != EventRoundStarted {
		t.Errorf("expected %s, got %s", EventRoundStarted, seen[0])
	}
}

func TestChannelEventBus_SubscribeAll(t *testing.T) {
	bus := NewChannelEventBus()
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	if _, err := bus.SubscribeAll(func(ctx context.Context, event Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatalf("SubscribeAll failed: %v", err)
	}

	ctx := context.Background()
	bus.Publish(ctx, NewEvent(EventWorkflowStarted, nil, "test", nil))
	bus.Publish(ctx, NewEvent(EventToolCallSuccess, nil, "test", nil))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	})
}

func TestChannelEventBus_Unsubscribe(t *testing.T) {
	bus := NewChannelEventBus()
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	id, err := bus.SubscribeAll(func(ctx context.Context, event Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeAll failed: %v", err)
	}

	if err := bus.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	bus.Publish(context.Background(), NewEvent(EventWorkflowStarted, nil, "test", nil))

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("expected no deliveries after unsubscribe, got %d", count)
	}
}

func TestChannelEventBus_PublishAfterClose(t *testing.T) {
	bus := NewChannelEventBus()
	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := bus.Publish(context.Background(), NewEvent(EventWorkflowStarted, nil, "test", nil)); err == nil {
		t.Errorf("expected error publishing to a closed bus")
	}
	// Closing twice is a no-op.
	if err := bus.Close(); err != nil {
		t.Errorf("expected idempotent close, got %v", err)
	}
}

func TestBaseEvent_Metadata(t *testing.T) {
	event := NewEvent(EventSystemInfo, "payload", "test", nil).WithMetadata("key", "value")
	if event.Metadata()["key"] != "value" {
		t.Errorf("expected metadata to round-trip")
	}
	if event.Source() != "test" || event.Payload() != "payload" {
		t.Errorf("unexpected event fields")
	}
	if event.Timestamp() == 0 {
		t.Errorf("expected a timestamp")
	}
}
