// Package events provides a centralized event bus for run and node
// lifecycle notifications. It implements pub/sub with backpressure
// control and priority channels.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentworkbench/workbench/internal/core"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Timestamp() time.Time
	Run() core.RunID
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type  string     `json:"type"`
	Time  time.Time  `json:"timestamp"`
	RunID core.RunID `json:"run_id"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) Run() core.RunID      { return e.RunID }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType string, runID core.RunID) BaseEvent {
	return BaseEvent{
		Type:  eventType,
		Time:  time.Now(),
		RunID: runID,
	}
}

// Subscriber represents an event subscription.
type Subscriber struct {
	ch       chan Event
	types    map[string]bool // Empty means all types
	priority bool
}

// Bus provides pub/sub with backpressure control.
type Bus struct {
	mu           sync.RWMutex
	subscribers  []*Subscriber
	prioritySubs []*Subscriber
	bufferSize   int
	droppedCount int64
	closed       bool
}

// New creates a new Bus with the specified buffer size.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers:  make([]*Subscriber, 0),
		prioritySubs: make([]*Subscriber, 0),
		bufferSize:   bufferSize,
	}
}

// Subscribe creates a subscription for specific event types.
// If no types are specified, subscribes to all events.
// Returns a channel that receives events.
func (b *Bus) Subscribe(types ...string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ch:    make(chan Event, b.bufferSize),
		types: make(map[string]bool),
	}
	for _, t := range types {
		sub.types[t] = true
	}
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

// SubscribePriority creates a priority subscription that never drops
// events. Use for critical events like run_failed.
func (b *Bus) SubscribePriority() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ch:       make(chan Event, 50), // Smaller buffer, blocking send
		types:    make(map[string]bool),
		priority: true,
	}
	b.prioritySubs = append(b.prioritySubs, sub)
	return sub.ch
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = removeSubscriber(b.subscribers, ch)
	b.prioritySubs = removeSubscriber(b.prioritySubs, ch)
}

func removeSubscriber(subs []*Subscriber, ch <-chan Event) []*Subscriber {
	result := make([]*Subscriber, 0, len(subs))
	for _, sub := range subs {
		if sub.ch != ch {
			result = append(result, sub)
		} else {
			close(sub.ch)
		}
	}
	return result
}

// Publish sends an event to all matching subscribers. Non-priority
// subscribers may drop events if their buffer is full (ring buffer
// behavior).
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.publish(event)
}

// PublishPriority sends an event to priority subscribers with blocking
// behavior. Use for events that must never be dropped.
func (b *Bus) PublishPriority(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.publish(event)

	for _, sub := range b.prioritySubs {
		sub.ch <- event
	}
}

func (b *Bus) publish(event Event) {
	eventType := event.EventType()

	for _, sub := range b.subscribers {
		if len(sub.types) == 0 || sub.types[eventType] {
			select {
			case sub.ch <- event:
			default:
				// Buffer full, drop oldest and try again (ring buffer)
				select {
				case <-sub.ch:
					atomic.AddInt64(&b.droppedCount, 1)
				default:
				}
				select {
				case sub.ch <- event:
				default:
					atomic.AddInt64(&b.droppedCount, 1)
				}
			}
		}
	}
}

// DroppedCount returns the total number of dropped events.
func (b *Bus) DroppedCount() int64 {
	return atomic.LoadInt64(&b.droppedCount)
}

// Close closes the event bus and all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	for _, sub := range b.prioritySubs {
		close(sub.ch)
	}
	b.subscribers = nil
	b.prioritySubs = nil
}
