package cache

import "time"

// Option configures the cache.
type Option func(*LiveCache)

// WithDetectionTTL sets how long recent detections stay visible.
func WithDetectionTTL(d time.Duration) Option {
	return func(c *LiveCache) {
		if d > 0 {
			c.detectionTTL = d
		}
	}
}

// WithStatusTTL sets how long person status snapshots stay fresh.
func WithStatusTTL(d time.Duration) Option {
	return func(c *LiveCache) {
		if d > 0 {
			c.statusTTL = d
		}
	}
}

// WithSweepInterval sets the janitor period.
func WithSweepInterval(d time.Duration) Option {
	return func(c *LiveCache) {
		if d > 0 {
			c.sweepEvery = d
		}
	}
}
