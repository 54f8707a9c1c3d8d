// Package events provides a lightweight pub/sub bus connecting the
// control loop to the trade journal and the status API.
package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSetupOpened     EventType = "SETUP_OPENED"
	EventSetupRolledBack EventType = "SETUP_ROLLED_BACK"
	EventSetupClosed     EventType = "SETUP_CLOSED"
	EventLegClosed       EventType = "LEG_CLOSED"
	EventStopMoved       EventType = "STOP_MOVED"
	EventTakeProfitMoved EventType = "TAKE_PROFIT_MOVED"
	EventLayerAdded      EventType = "LAYER_ADDED"
	EventWeekendClose    EventType = "WEEKEND_CLOSE"
	EventEntryDenied     EventType = "ENTRY_DENIED"
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventBotStarted      EventType = "BOT_STARTED"
	EventBotStopped      EventType = "BOT_STOPPED"
	EventError           EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions. Recent events are
// kept in a bounded ring so the status API can serve them without a store.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
	recent      []Event
	recentMax   int
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		recentMax:   256,
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.Lock()
	eb.recent = append(eb.recent, event)
	if len(eb.recent) > eb.recentMax {
		eb.recent = eb.recent[len(eb.recent)-eb.recentMax:]
	}
	subs := append([]Subscriber(nil), eb.subscribers[event.Type]...)
	all := append([]Subscriber(nil), eb.allSubs...)
	eb.mu.Unlock()

	// Run in goroutines to avoid blocking the control loop
	for _, sub := range subs {
		go sub(event)
	}
	for _, sub := range all {
		go sub(event)
	}
}

// Recent returns up to limit most recent events, newest last.
func (eb *EventBus) Recent(limit int) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if limit <= 0 || limit > len(eb.recent) {
		limit = len(eb.recent)
	}
	out := make([]Event, limit)
	copy(out, eb.recent[len(eb.recent)-limit:])
	return out
}

// PublishSetupOpened publishes a setup opened event
func (eb *EventBus) PublishSetupOpened(setupID, symbol, direction, strategy string, legs int) {
	eb.Publish(Event{
		Type: EventSetupOpened,
		Data: map[string]interface{}{
			"setup_id":  setupID,
			"symbol":    symbol,
			"direction": direction,
			"strategy":  strategy,
			"legs":      legs,
		},
	})
}

// PublishLegClosed publishes a leg closed event
func (eb *EventBus) PublishLegClosed(setupID string, legIndex int, ticket int64, reason string) {
	eb.Publish(Event{
		Type: EventLegClosed,
		Data: map[string]interface{}{
			"setup_id":  setupID,
			"leg_index": legIndex,
			"ticket":    ticket,
			"reason":    reason,
		},
	})
}

// PublishStopMoved publishes a stop loss move event
func (eb *EventBus) PublishStopMoved(setupID string, legIndex int, ticket int64, newStop float64) {
	eb.Publish(Event{
		Type: EventStopMoved,
		Data: map[string]interface{}{
			"setup_id":  setupID,
			"leg_index": legIndex,
			"ticket":    ticket,
			"new_stop":  newStop,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
