// Package chanq provides an unbounded FIFO that feeds a consumer channel
// without ever blocking producers.
package chanq

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO. Push never blocks; Pump delivers items in
// order to a single consumer channel.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{}
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{signal: make(chan struct{}, 1)}
}

// Push appends v. It reports false once the queue has been closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.wake()
	return true
}

// Close stops accepting items. Items already queued are still delivered.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// Len returns the number of undelivered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) take() ([]T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items, q.closed
}

// Pump forwards queued items to out until ctx is done or the queue is closed
// and drained, then closes out.
func (q *Queue[T]) Pump(ctx context.Context, out chan<- T) {
	defer close(out)
	for {
		items, closed := q.take()
		for _, v := range items {
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
		if closed && len(items) == 0 {
			return
		}
		if len(items) > 0 {
			continue
		}
		select {
		case <-q.signal:
		case <-ctx.Done():
			return
		}
	}
}
