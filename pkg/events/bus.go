// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package events provides the event bus used to report transaction lifecycle
// events to audit and logging collaborators.
//
// Publishing never blocks: a subscriber whose channel is full misses the
// event. Events published before Start are buffered and replayed on Start so
// that collaborators wired up after the first transaction still see it.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is the base interface for all events published on the bus.
type Event interface {
	// EventType returns a dot-separated identifier such as
	// "transaction.completed".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type subscription struct {
	ch    chan Event
	types map[string]bool
}

func (s *subscription) wants(event Event) bool {
	return len(s.types) == 0 || s.types[event.EventType()]
}

// EventBus fans events out to subscribers. It is safe for concurrent use.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []*subscription

	startMu        sync.Mutex
	started        bool
	preStartBuffer []Event

	dropped atomic.Uint64
}

// NewEventBus creates a bus in buffering mode. capacity is the initial size
// of the pre-start buffer.
func NewEventBus(capacity int) *EventBus {
	return &EventBus{
		preStartBuffer: make([]Event, 0, capacity),
	}
}

// Publish delivers event to every interested subscriber and returns how many
// received it. Before Start the event is buffered and 0 is returned.
func (b *EventBus) Publish(event Event) int {
	b.startMu.Lock()
	if !b.started {
		b.preStartBuffer = append(b.preStartBuffer, event)
		b.startMu.Unlock()
		return 0
	}
	b.startMu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.deliver(event, b.subscribers)
}

func (b *EventBus) deliver(event Event, subscribers []*subscription) int {
	sent := 0
	for _, sub := range subscribers {
		if !sub.wants(event) {
			continue
		}
		select {
		case sub.ch <- event:
			sent++
		default:
			b.dropped.Add(1)
		}
	}
	return sent
}

// Subscribe returns a channel receiving every published event. The channel
// is never closed by the bus unless Unsubscribe is called.
func (b *EventBus) Subscribe(bufferSize int) <-chan Event {
	return b.SubscribeTypes(bufferSize)
}

// SubscribeTypes returns a channel receiving only events of the given types.
// With no types it behaves like Subscribe.
func (b *EventBus) SubscribeTypes(bufferSize int, eventTypes ...string) <-chan Event {
	sub := &subscription{ch: make(chan Event, bufferSize)}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

// Unsubscribe removes the subscription owning ch and closes it. It reports
// whether the subscription existed.
func (b *EventBus) Unsubscribe(ch <-chan Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub.ch == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub.ch)
			return true
		}
	}
	return false
}

// Subscribers returns the current number of subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were skipped because a subscriber's
// channel was full.
func (b *EventBus) Dropped() uint64 {
	return b.dropped.Load()
}

// Start replays buffered events in publish order and switches the bus to
// direct delivery. Calling Start more than once has no further effect.
func (b *EventBus) Start() {
	b.startMu.Lock()
	defer b.startMu.Unlock()

	if b.started {
		return
	}
	b.started = true

	if len(b.preStartBuffer) == 0 {
		return
	}

	b.mu.RLock()
	for _, event := range b.preStartBuffer {
		b.deliver(event, b.subscribers)
	}
	b.mu.RUnlock()

	b.preStartBuffer = nil
}
