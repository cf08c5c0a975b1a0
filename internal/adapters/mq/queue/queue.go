// Package queue defines the contract for enqueuing and consuming detections.
//
// Implementations may use channels or more advanced structures. The pipeline
// starts with an in-memory bounded queue.
package queue

import (
	"context"
	"sync"

	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 100000
	defaultBufferSize    = 100000
)

// Detection represents the payload type flowing through the queue.
// Using the model.Detection type for type safety.
type Detection = model.Detection

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a detection to the queue.
	// Returns false if the queue is full and the detection was not enqueued.
	Enqueue(ctx context.Context, d Detection) bool

	// Dequeue returns a channel that will receive detections as they become
	// available. The channel will be closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Detection

	// Len returns the current number of queued detections.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	// After closing, no new detections can be enqueued and the dequeue
	// channel will be closed.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	detections chan Detection
	capacity   int
	bufferSize int
	mu         sync.RWMutex
	closed     bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:   defaultQueueCapacity,
		bufferSize: defaultBufferSize,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.detections = make(chan Detection, q.bufferSize)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds a detection to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, d Detection) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueError("closed")
		return false
	}

	if len(q.detections) >= q.capacity {
		metrics.RecordQueueError("capacity_exceeded")
		return false
	}

	select {
	case q.detections <- d:
		metrics.RecordQueueEnqueue()
		currentSize := len(q.detections)
		metrics.UpdateQueueSize(currentSize)
		metrics.UpdateQueueUtilization(float64(currentSize) / float64(q.capacity))
		return true
	case <-ctx.Done():
		metrics.RecordQueueError("context_cancelled")
		return false
	default:
		metrics.RecordQueueError("queue_full")
		return false
	}
}

// Dequeue returns a channel that will receive detections as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Detection {
	// Wrap the channel to track dequeue metrics.
	out := make(chan Detection)
	go func() {
		defer close(out)
		for d := range q.detections {
			select {
			case out <- d:
				metrics.RecordQueueDequeue()
				currentSize := len(q.detections)
				metrics.UpdateQueueSize(currentSize)
				metrics.UpdateQueueUtilization(float64(currentSize) / float64(q.capacity))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued detections.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.detections)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.detections)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
