// Package queue provides an unbounded, ordered, blocking FIFO used to hand
// work from lock-holding producers to a single consumer goroutine.
package queue

import "sync"

// Queue is a thread-safe FIFO that never blocks producers. Storage is a
// ring that doubles when full, so Push stays O(1) amortized.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	size   int
	closed bool

	pushed int64
	popped int64
	grown  int
}

// New creates a queue with room for hint items before the first grow.
func New[T any](hint int) *Queue[T] {
	if hint < 1 {
		hint = 1
	}
	q := &Queue[T]{ring: make([]T, hint)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item. Returns false once the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.size == len(q.ring) {
		q.resize(len(q.ring) * 2)
	}
	q.ring[(q.head+q.size)%len(q.ring)] = item
	q.size++
	q.pushed++
	q.cond.Signal()
	return true
}

// Pop removes the oldest item, blocking while the queue is empty and open.
// After Close it keeps returning buffered items, then (zero, false).
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.cond.Wait()
	}
	return q.take()
}

// Close stops accepting items and wakes every blocked Pop. Idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Stats describes queue throughput.
type Stats struct {
	Len      int
	Capacity int
	Pushed   int64
	Popped   int64
	Grown    int
}

// Stats returns a point-in-time snapshot.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Len:      q.size,
		Capacity: len(q.ring),
		Pushed:   q.pushed,
		Popped:   q.popped,
		Grown:    q.grown,
	}
}

// take must be called with q.mu held.
func (q *Queue[T]) take() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}
	item := q.ring[q.head]
	q.ring[q.head] = zero
	q.head = (q.head + 1) % len(q.ring)
	q.size--
	q.popped++
	return item, true
}

func (q *Queue[T]) resize(n int) {
	next := make([]T, n)
	for i := 0; i < q.size; i++ {
		next[i] = q.ring[(q.head+i)%len(q.ring)]
	}
	q.ring = next
	q.head = 0
	q.grown++
}
