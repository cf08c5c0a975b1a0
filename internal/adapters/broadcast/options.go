package broadcast

import "time"

// Option configures the broadcaster.
type Option func(*Broadcaster)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithPingTimeout sets how long a subscriber may stay silent before it is
// reaped.
func WithPingTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.pingTimeout = d
		}
	}
}

// WithReapInterval sets how often stale subscribers are checked.
func WithReapInterval(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.reapInterval = d
		}
	}
}
