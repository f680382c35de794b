// Package events provides a small in-process publish/subscribe bus for
// capture and registry lifecycle events. Publication is fire-and-forget:
// slow or absent subscribers never affect the publishing operation.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event names published by the core flows.
const (
	CaptureTriaged  = "capture:triaged"
	CaptureArchived = "capture:archived"
	RegistrySynced  = "registry:synced"
)

// Event is a published notification.
type Event struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Bus fans events out to subscribers. Delivery is non-blocking: events
// are dropped for subscribers whose buffer is full.
type Bus struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{
		logger: slog.Default(),
		subs:   make(map[int]chan Event),
	}
}

// Publish delivers an event to all current subscribers.
func (b *Bus) Publish(name string, payload map[string]any) {
	ev := Event{
		ID:        uuid.New().String(),
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("dropping event for slow subscriber", "event", name, "subscriber", id)
		}
	}
}

// Subscribe registers a buffered subscription and returns the receive
// channel plus a cancel function that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}
