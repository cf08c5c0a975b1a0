package hrsync

import "time"

// Option configures the syncer.
type Option func(*Syncer)

// WithMaxAttempts sets the attempt limit before a job is dead-lettered.
func WithMaxAttempts(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithInitialDelay sets the backoff before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.initialDelay = d
		}
	}
}

// WithMaxDelay caps the backoff between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.maxDelay = d
		}
	}
}

// WithPollInterval sets how often due jobs are checked.
func WithPollInterval(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}
