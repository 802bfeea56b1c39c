// Package dispatch delivers listener callbacks one at a time, in the order
// their events happened.
package dispatch

import "sync"

// Queue is a FIFO of pending deliveries with at most one active drainer.
// Producers Push while still holding the lock that ordered the event and call
// Drain after releasing it. The zero value is ready to use.
type Queue[T any] struct {
	mu      sync.Mutex
	pending []T
	running bool
}

// Push appends items to the queue.
func (q *Queue[T]) Push(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, items...)
	q.mu.Unlock()
}

// Drain hands queued items to fn until the queue is empty. When another
// goroutine is already draining, Drain returns at once and that goroutine
// delivers the items, so a callback may itself Push and Drain without
// deadlocking.
func (q *Queue[T]) Drain(fn func(T)) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		var zero T
		next := q.pending[0]
		q.pending[0] = zero
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.deliver(fn, next)
	}
}

// Len returns the number of undelivered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue[T]) deliver(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			q.mu.Lock()
			q.running = false
			q.mu.Unlock()
			panic(r)
		}
	}()
	fn(v)
}
