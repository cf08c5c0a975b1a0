// Package match resolves detection signature vectors to enrolled identities.
package match

import "time"

// Option applies a configuration option to the VectorEngine.
type Option func(*VectorEngine)

// WithThreshold sets the minimum confidence for a positive match.
func WithThreshold(t float64) Option {
	return func(e *VectorEngine) {
		if t > 0 && t <= 1 {
			e.threshold = t
		}
	}
}

// WithCandidateK sets how many nearest samples the index is asked for.
func WithCandidateK(k int) Option {
	return func(e *VectorEngine) {
		if k > 0 {
			e.candidateK = k
		}
	}
}

// WithTimeout bounds a single match call.
func WithTimeout(d time.Duration) Option {
	return func(e *VectorEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}
