package connector

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Queue is an unbounded FIFO hand-off between one socket receive loop and its
// dispatch loop. Enqueue never blocks; Dequeue blocks until an item arrives
// or the context is cancelled. It is safe to drain from several goroutines,
// though the design assumes a single logical consumer per queue.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
	gauge prometheus.Gauge
}

// NewQueue returns an empty queue. gauge, when non-nil, tracks queue depth.
func NewQueue[T any](gauge prometheus.Gauge) *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1), gauge: gauge}
}

// Enqueue appends an item. There is no backpressure: a slow consumer grows
// the backlog, which is why depth is exported as a gauge.
func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	n := len(q.items)
	q.mu.Unlock()
	if q.gauge != nil {
		q.gauge.Set(float64(n))
	}
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the oldest item, blocking until one is
// available. The returned error is non-nil only when ctx ends first.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			n := len(q.items)
			q.mu.Unlock()
			if q.gauge != nil {
				q.gauge.Set(float64(n))
			}
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len reports the current backlog.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
