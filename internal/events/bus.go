/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventSlotsChanged    EventType = "slots.changed"
	EventSlotsSaved      EventType = "slots.saved"
	EventTemplateSaved   EventType = "template.saved"
	EventTemplateDeleted EventType = "template.deleted"
	EventTemplateApplied EventType = "template.applied"
	EventEventCreated    EventType = "event.created"
)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub. Publish never blocks: a
// subscriber whose buffer is full misses the payload.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType][]Subscriber
	buffer int
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return NewBusWithBuffer(8)
}

// NewBusWithBuffer creates an event bus whose subscriber channels hold size payloads.
func NewBusWithBuffer(size int) *Bus {
	if size < 0 {
		size = 0
	}
	return &Bus{subs: make(map[EventType][]Subscriber), buffer: size}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, b.buffer)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}
