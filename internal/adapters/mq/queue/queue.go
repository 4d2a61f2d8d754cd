// Package queue buffers accepted submissions between the HTTP handlers and
// the scoring workers.
package queue

import (
	"context"
	"sync"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/model"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a submission without blocking. It fails with ErrFull when
	// the queue is at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, sub model.Submission) error

	// Dequeue returns the channel workers receive from. It is closed once the
	// queue is closed and drained.
	Dequeue() <-chan model.Submission

	// Len returns the number of buffered submissions.
	Len() int

	// Cap returns the queue capacity.
	Cap() int

	// Close stops accepting submissions. Buffered ones remain readable.
	Close() error
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	items    chan model.Submission
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan model.Submission, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a submission to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, sub model.Submission) error { //nolint:gocritic // hugeParam: passed by value into the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.items <- sub:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.items))
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue() <-chan model.Submission {
	return q.items
}

// Len returns the current number of queued submissions.
func (q *InMemoryQueue) Len() int {
	return len(q.items)
}

// Cap returns the capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops accepting submissions. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
