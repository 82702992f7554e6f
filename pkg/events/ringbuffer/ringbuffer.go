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

// Package ringbuffer provides a fixed-size, thread-safe circular buffer.
//
//	history := ringbuffer.New[events.Event](100)
//	history.Add(evt)
//	recent := history.GetLast(10)
package ringbuffer

import "sync"

// RingBuffer keeps the most recent items up to a fixed capacity. Adding to a
// full buffer overwrites the oldest item.
type RingBuffer[T any] struct {
	mu    sync.RWMutex
	items []T
	head  int // next write position
	count int
}

// New creates a buffer holding at most size items. A size below 1 is
// raised to 1.
func New[T any](size int) *RingBuffer[T] {
	if size < 1 {
		size = 1
	}
	return &RingBuffer[T]{items: make([]T, size)}
}

// Add appends an item, evicting the oldest one when the buffer is full.
func (rb *RingBuffer[T]) Add(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.items[rb.head] = item
	rb.head = (rb.head + 1) % len(rb.items)
	if rb.count < len(rb.items) {
		rb.count++
	}
}

// GetLast returns up to n of the newest items, oldest first.
func (rb *RingBuffer[T]) GetLast(n int) []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.lastLocked(n)
}

func (rb *RingBuffer[T]) lastLocked(n int) []T {
	if n > rb.count {
		n = rb.count
	}
	if n <= 0 {
		return []T{}
	}

	size := len(rb.items)
	start := (rb.head - n + size) % size
	out := make([]T, n)
	for i := range out {
		out[i] = rb.items[(start+i)%size]
	}
	return out
}

// GetAll returns every stored item, oldest first.
func (rb *RingBuffer[T]) GetAll() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.lastLocked(rb.count)
}

// Last returns the newest item.
func (rb *RingBuffer[T]) Last() (T, bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var zero T
	if rb.count == 0 {
		return zero, false
	}
	size := len(rb.items)
	return rb.items[(rb.head-1+size)%size], true
}

// Filter returns the stored items matching keep, newest first.
func (rb *RingBuffer[T]) Filter(keep func(T) bool) []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []T
	all := rb.lastLocked(rb.count)
	for i := len(all) - 1; i >= 0; i-- {
		if keep(all[i]) {
			out = append(out, all[i])
		}
	}
	return out
}

// Len returns the number of stored items.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer[T]) Cap() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return len(rb.items)
}

// Clear empties the buffer.
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	for i := range rb.items {
		rb.items[i] = zero
	}
	rb.head = 0
	rb.count = 0
}
