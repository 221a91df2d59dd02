// Package events provides an in-process publish/subscribe bus used to fan
// domain events out to the websocket feed and other listeners.
package events

import (
	"sync"
	"time"
)

// Event types emitted by the application services.
const (
	TypeIncidentDeclared   = "incident.declared"
	TypeIncidentStatus     = "incident.status_changed"
	TypeAssessmentCreated  = "assessment.submitted"
	TypeAssessmentVerified = "assessment.verified"
	TypeAssessmentRejected = "assessment.rejected"
	TypeResponseDelivered  = "response.delivered"
	TypeResponseVerified   = "response.verified"
	TypeCommitmentPledged  = "commitment.pledged"
	TypeCommitmentStatus   = "commitment.status_changed"
)

// Event is a broadcast domain event.
type Event struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	At      time.Time              `json:"at"`
}

// Bus is a non-blocking fan-out bus. Slow subscribers drop events rather
// than stalling publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
}

// NewBus creates a bus with the given per-subscriber buffer.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 32
	}
	return &Bus{subs: make(map[int]chan Event), buffer: buffer}
}

// Publish delivers the event to all current subscribers.
func (b *Bus) Publish(eventType string, payload map[string]interface{}) {
	evt := Event{Type: eventType, Payload: payload, At: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe registers a listener. The returned cancel function must be
// called to release the subscription.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
