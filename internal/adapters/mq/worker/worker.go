// Package worker defines worker contracts for asynchronous detection processing.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/gatewatch/internal/domain/attendance"
	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/logger"
	"github.com/okian/gatewatch/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	defaultProcessTimeout   = 5 * time.Second
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Detection abstracts what workers read off the queue.
// Using the model.Detection type for consistency.
type Detection = model.Detection

// Matcher resolves a detection to an identity.
type Matcher interface {
	Match(ctx context.Context, det model.Detection) (model.MatchResult, error)
}

// Applier runs the attendance state machine for a matched detection.
type Applier interface {
	Apply(ctx context.Context, det model.Detection, mr model.MatchResult) (attendance.Result, error)
}

// Recorder receives processed detections for the live view.
type Recorder interface {
	PutDetection(ctx context.Context, det model.Detection, personID string, confidence float64)
}

// Publisher fans events out to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev model.Event)
}

// Queue defines how workers receive detections.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Detection
}

// Worker processes detections using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will process any remaining detections before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing detections.
type InMemoryWorker struct {
	queue   Queue
	matcher Matcher
	applier Applier
	cache   Recorder
	pub     Publisher
	name    string

	processTimeout time.Duration

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, matcher Matcher, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:          queue,
		matcher:        matcher,
		applier:        applier,
		name:           "worker", // default name
		processTimeout: defaultProcessTimeout,
		shutdown:       make(chan struct{}),
		done:           make(chan struct{}),
		logger:         logger.Get().Named("worker"), // will be updated by options
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	detChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case det, ok := <-detChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			if err := w.processDetection(ctx, det); err != nil {
				w.logger.Error(ctx, "error processing detection", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processDetection handles a single detection: match, apply attendance, and
// record the result in the live view. A failure in one detection never
// affects the next.
func (w *InMemoryWorker) processDetection(ctx context.Context, det Detection) error {
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordWorkerProcessingLatency(float64(latency))
	}()

	ctx, cancel := context.WithTimeout(ctx, w.processTimeout)
	defer cancel()

	mr, err := w.matcher.Match(ctx, det)
	if err != nil {
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "matching failed for detection",
			logger.String("detection_id", det.ID),
			logger.String("camera_id", det.CameraID),
			logger.Error(err),
		)
		return fmt.Errorf("failed to match detection %s: %w", det.ID, err)
	}

	if w.cache != nil {
		w.cache.PutDetection(ctx, det, mr.PersonID, mr.Confidence)
	}
	if w.pub != nil {
		w.pub.Publish(ctx, model.Event{
			Type:       model.EventDetection,
			CameraID:   det.CameraID,
			PersonID:   mr.PersonID,
			Confidence: mr.Confidence,
			At:         det.CapturedAt,
		})
	}

	res, err := w.applier.Apply(ctx, det, mr)
	if err != nil {
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "attendance update failed for detection",
			logger.String("detection_id", det.ID),
			logger.String("person_id", mr.PersonID),
			logger.Error(err),
		)
		return fmt.Errorf("attendance update failed: %w", err)
	}

	w.logger.Debug(ctx, "detection processed",
		logger.String("detection_id", det.ID),
		logger.String("person_id", mr.PersonID),
		logger.String("outcome", string(res.Outcome)),
	)

	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	// Shutdown control
	shutdown chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, matcher Matcher, applier Applier, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		named := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, matcher, applier, named...)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, worker := range p.workers {
		select {
		case <-worker.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue to stop new detections
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
