// Package queue provides the mutex-guarded FIFO used to batch database writes.
package queue

import (
	"sync"
)

// Queue is a generic thread-safe FIFO. Producers push from the recording
// workers; a single writer drains it in batches.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates a new empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
	}
}

// Push appends items to the back of the queue.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Requeue puts items back at the front, ahead of anything pushed since they were drained.
// Used when a batch write fails so ordering is preserved on retry.
func (q *Queue[T]) Requeue(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]T, 0, len(items)+len(q.items))
	merged = append(merged, items...)
	q.items = append(merged, q.items...)
}

// Pop removes and returns the first item. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes all items from the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// Drain returns all items and empties the queue.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}

// DrainN removes and returns at most n items from the front. n <= 0 drains everything.
func (q *Queue[T]) DrainN(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 || n >= len(q.items) {
		result := q.items
		q.items = make([]T, 0, cap(q.items))
		return result
	}
	result := make([]T, n)
	copy(result, q.items[:n])
	q.items = append(q.items[:0], q.items[n:]...)
	return result
}
