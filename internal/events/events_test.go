package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventSyncCompleted, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	payload := SyncReportPayload{TaskID: "balances", Category: "balances", Success: true, At: time.Now()}
	if err := bus.PublishJSON(EventSyncCompleted, payload); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if received.Type != EventSyncCompleted {
		t.Errorf("expected type %s, got %s", EventSyncCompleted, received.Type)
	}

	var decoded SyncReportPayload
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.TaskID != "balances" || !decoded.Success {
		t.Errorf("unexpected payload: %+v", decoded)
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe(EventSyncFailed, func(_ *Event) error { count1++; return nil })
	bus.Subscribe(EventSyncFailed, func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: EventSyncFailed})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Should not panic
	bus.Publish(&Event{Type: "unknown"})
	if err := bus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}
}

func TestEventBusNilReceiver(t *testing.T) {
	var bus *EventBus
	if err := bus.PublishJSON(EventTaskDropped, SyncReportPayload{TaskID: "goals"}); err != nil {
		t.Errorf("nil bus PublishJSON should be a no-op, got %v", err)
	}
}
