// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package realtime delivers typed change events to interested parts of
// the application.
package realtime

import (
	"log"
	"sync"

	"github.com/jeranaias/gyankosh/internal/model"
)

// =============================================================================
// EVENTS
// =============================================================================

// Event is a typed change notification. Topic routes the event to
// subscribers: a session id for conversation events, an owner id for
// profile events.
type Event interface {
	Topic() string
}

// MessageInserted fires when a message is appended to a session.
type MessageInserted struct {
	SessionID string
	Message   model.Message
}

func (e MessageInserted) Topic() string { return e.SessionID }

// SessionRenamed fires when a session title changes.
type SessionRenamed struct {
	SessionID string
	Title     string
}

func (e SessionRenamed) Topic() string { return e.SessionID }

// SessionDeleted fires when a session and its messages are removed.
type SessionDeleted struct {
	SessionID string
}

func (e SessionDeleted) Topic() string { return e.SessionID }

// ProfileUpdated fires when the vault owner's profile changes.
type ProfileUpdated struct {
	OwnerID     string
	DisplayName string
}

func (e ProfileUpdated) Topic() string { return e.OwnerID }

// =============================================================================
// BROKER
// =============================================================================

// subscriberBuffer is the per-subscriber channel depth. A subscriber
// that falls this far behind starts losing events rather than blocking
// publishers.
const subscriberBuffer = 32

// UnsubscribeFunc removes a subscription. Safe to call more than once.
type UnsubscribeFunc func()

type subscriber struct {
	topic string
	ch    chan Event
}

// Broker fans typed events out to topic subscribers.
// Publishing never blocks; slow subscribers drop events.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[int]*subscriber),
	}
}

// Subscribe registers interest in a topic (a session or owner id).
// The returned channel delivers matching events until the returned
// UnsubscribeFunc is called or the broker closes.
func (b *Broker) Subscribe(topic string) (<-chan Event, UnsubscribeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	sub := &subscriber{
		topic: topic,
		ch:    make(chan Event, subscriberBuffer),
	}

	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[id] = sub

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if s, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
		})
	}

	return sub.ch, unsubscribe
}

// Publish delivers an event to every subscriber of its topic.
func (b *Broker) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if sub.topic != event.Topic() {
			continue
		}
		select {
		case sub.ch <- event:
			// Delivered
		default:
			// Subscriber full, drop event and log warning
			log.Printf("WARNING: realtime subscriber full, dropped event for topic %s", event.Topic())
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close shuts the broker down and closes all subscriber channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
