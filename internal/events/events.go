package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventSyncCompleted    = "sync_completed"
	EventSyncFailed       = "sync_failed"
	EventTaskDropped      = "task_dropped"
	EventConflictResolved = "conflict_resolved"
	EventReauthRequired   = "reauth_required"
)

// SyncReportPayload describes the outcome of one task execution or a terminal
// task event for downstream sinks.
type SyncReportPayload struct {
	TaskID      string    `json:"task_id"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	Success     bool      `json:"success"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
	DataUpdated bool      `json:"data_updated,omitempty"`
	RetryCount  int       `json:"retry_count,omitempty"`
	At          time.Time `json:"at"`
}

// ConflictPayload describes a resolved divergence for audit sinks.
type ConflictPayload struct {
	Entity     string    `json:"entity"`
	Type       string    `json:"type"`
	Resolution string    `json:"resolution"`
	LocalID    string    `json:"local_id"`
	RemoteID   string    `json:"remote_id"`
	At         time.Time `json:"at"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
