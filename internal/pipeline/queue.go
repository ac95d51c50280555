package pipeline

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// Queue is a bounded, multi-producer/multi-consumer FIFO. Capacity is
// enforced by a weighted semaphore rather than by blocking: TryPush and
// TryPop never block, so a full queue is a caller-visible condition
// rather than a point of contention. Workers respond to a failed
// TryPush/TryPop by sleeping a configured backoff and retrying, per the
// pipeline's cooperative-backpressure design.
type Queue[T any] struct {
	admission *semaphore.Weighted
	mu        sync.Mutex
	items     []T
}

// NewQueue builds a Queue holding at most capacity items.
func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{admission: semaphore.NewWeighted(int64(capacity))}
}

// TryPush appends v if the queue has a free slot, reporting whether it
// did.
func (q *Queue[T]) TryPush(v T) bool {
	if !q.admission.TryAcquire(1) {
		return false
	}
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	return true
}

// TryPop removes and returns the oldest item, reporting whether there
// was one.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		var zero T
		return zero, false
	}
	v := q.items[0]
	q.items = q.items[1:]
	q.mu.Unlock()
	q.admission.Release(1)
	return v, true
}

// Len reports the current queue depth, for progress/diagnostic reporting.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns every remaining item and releases their
// admission slots. The runtime does not call it when stopping.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	q.admission.Release(int64(len(out)))
	return out
}
