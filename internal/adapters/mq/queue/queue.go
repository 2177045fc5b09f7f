// Package queue buffers result submissions between the HTTP layer and the
// recompute worker.
package queue

import (
	"context"
	"sync"

	"github.com/okian/mccskill/internal/domain/model"
	"github.com/okian/mccskill/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Submission is the payload type flowing through the queue.
type Submission = model.Submission

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a submission to the queue.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, s Submission) bool

	// Dequeue returns the channel submissions arrive on. It is closed by Close.
	Dequeue(ctx context.Context) <-chan Submission

	// TryDequeue returns the next submission without blocking.
	TryDequeue(ctx context.Context) (Submission, bool)

	// Len returns the current number of pending submissions.
	Len(ctx context.Context) int

	// Close stops accepting submissions and closes the dequeue channel once
	// it has been drained.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Submission
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Submission, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a submission to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, s Submission) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case <-ctx.Done():
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
	}

	select {
	case q.items <- s:
		metrics.UpdateQueueSize(len(q.items))
		return true
	default:
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns the underlying receive channel.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Submission {
	return q.items
}

// TryDequeue returns the next pending submission, if any.
func (q *InMemoryQueue) TryDequeue(_ context.Context) (Submission, bool) {
	select {
	case s, ok := <-q.items:
		if !ok {
			return Submission{}, false
		}
		metrics.UpdateQueueSize(len(q.items))
		return s, true
	default:
		return Submission{}, false
	}
}

// Len returns the current number of pending submissions.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	return size
}

// Close gracefully shuts down the queue. Pending submissions stay readable.
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

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
