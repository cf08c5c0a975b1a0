// Package worker defines worker contracts for asynchronous detection processing.
package worker

import "time"

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker's name for logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithRecorder sets the live-view recorder for processed detections.
func WithRecorder(r Recorder) Option {
	return func(w *InMemoryWorker) {
		w.cache = r
	}
}

// WithPublisher sets the event publisher for processed detections.
func WithPublisher(p Publisher) Option {
	return func(w *InMemoryWorker) {
		w.pub = p
	}
}

// WithProcessTimeout bounds per-detection processing time.
func WithProcessTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.processTimeout = d
		}
	}
}
