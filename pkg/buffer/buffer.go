// Package buffer provides the bounded in-memory store backing the log and
// metric histories. Capacity is fixed at construction; overflow evicts the
// oldest entry (FIFO). All operations are safe for concurrent use.
package buffer

import "sync"

// Bounded is a fixed-capacity FIFO buffer. Push never fails; once the buffer
// holds its capacity, each Push evicts the oldest element.
type Bounded[T any] struct {
	mu       sync.RWMutex
	entries  []T
	capacity int
}

// NewBounded creates a bounded buffer holding at most capacity elements.
// Capacities below 1 are clamped to 1.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends item, evicting the oldest element when the buffer is full.
func (b *Bounded[T]) Push(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == b.capacity {
		copy(b.entries, b.entries[1:])
		b.entries[len(b.entries)-1] = item
		return
	}
	b.entries = append(b.entries, item)
}

// Recent returns the most recent k elements in original (oldest-first)
// order. k larger than the current length returns everything.
func (b *Bounded[T]) Recent(k int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if k < 0 {
		k = 0
	}
	if k > len(b.entries) {
		k = len(b.entries)
	}
	out := make([]T, k)
	copy(out, b.entries[len(b.entries)-k:])
	return out
}

// Filter returns the elements matching pred, oldest first, without mutating
// the buffer.
func (b *Bounded[T]) Filter(pred func(T) bool) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []T
	for _, e := range b.entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot returns a copy of the full contents, oldest first.
func (b *Bounded[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of elements currently held.
func (b *Bounded[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Cap returns the fixed capacity.
func (b *Bounded[T]) Cap() int {
	return b.capacity
}
