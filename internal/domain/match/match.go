// Package match resolves detection signature vectors to enrolled identities.
package match

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/metrics"
)

// Default matching configuration constants.
const (
	defaultThreshold  = 0.6
	defaultCandidateK = 10
	defaultTimeout    = 2 * time.Second
)

// Candidate is one nearest-neighbor sample returned by the index.
type Candidate struct {
	PersonID   string
	Distance   float64
	EnrolledAt time.Time
}

// Index serves nearest-neighbor lookups against the enrolled signature set.
// Implementations must be safe for concurrent reads.
type Index interface {
	// Nearest returns up to k candidate samples closest to vec, one entry
	// per sample (a person with several samples may appear more than once).
	Nearest(ctx context.Context, vec model.Vector, k int) ([]Candidate, error)

	// Count returns the number of enrolled identities.
	Count(ctx context.Context) int
}

// Engine scores a detection against the signature store.
type Engine interface {
	// Match computes the best-matching identity for the detection's vector,
	// honoring ctx for cancellation. A result below the threshold carries an
	// empty PersonID; that is not an error.
	Match(ctx context.Context, det model.Detection) (model.MatchResult, error)
}

// VectorEngine implements Engine over an Index. Stateless; fully
// parallelizable across detections.
type VectorEngine struct {
	index      Index
	threshold  float64
	candidateK int
	timeout    time.Duration
}

// NewVectorEngine creates a matching engine with configuration options.
func NewVectorEngine(index Index, opts ...Option) *VectorEngine {
	e := &VectorEngine{
		index:      index,
		threshold:  defaultThreshold,
		candidateK: defaultCandidateK,
		timeout:    defaultTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Match computes a MatchResult for the detection.
//
// The score for a person with several enrolled samples is the minimum
// distance across all of them: one excellent enrollment is not diluted by
// poor ones. Equal best distances break toward the most recent enrollment so
// results stay deterministic.
func (e *VectorEngine) Match(ctx context.Context, det model.Detection) (model.MatchResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordMatchLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := validateSignature(det.Signature); err != nil {
		metrics.RecordMatchError("invalid_signature")
		return model.MatchResult{}, fmt.Errorf("detection %s: %w", det.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	candidates, err := e.index.Nearest(ctx, det.Signature, e.candidateK)
	if err != nil {
		metrics.RecordMatchError("index")
		return model.MatchResult{}, fmt.Errorf("detection %s: %w: %w", det.ID, ErrIndexFailure, err)
	}
	if ctx.Err() != nil {
		metrics.RecordMatchError("timeout")
		return model.MatchResult{}, fmt.Errorf("detection %s: %w: %v", det.ID, ErrMatchTimeout, ctx.Err())
	}

	result := model.MatchResult{
		DetectionID: det.ID,
		Distance:    1.0,
		EvaluatedAt: time.Now().UTC(),
	}

	// Collapse samples to one best distance per person.
	best := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		if cur, ok := best[c.PersonID]; !ok || c.Distance < cur.Distance {
			best[c.PersonID] = c
		}
	}

	var winner *Candidate
	for _, c := range best {
		c := c
		switch {
		case winner == nil, c.Distance < winner.Distance:
			winner = &c
		case c.Distance == winner.Distance && c.EnrolledAt.After(winner.EnrolledAt):
			winner = &c
		}
	}

	if winner == nil {
		metrics.RecordMatchMiss()
		return result, nil
	}

	confidence := math.Max(0, 1-winner.Distance)
	result.Distance = winner.Distance
	result.Confidence = confidence

	if confidence < e.threshold {
		metrics.RecordMatchMiss()
		return result, nil
	}

	result.PersonID = winner.PersonID
	metrics.RecordMatchHit()
	return result, nil
}

// validateSignature rejects vectors the index cannot score.
func validateSignature(vec model.Vector) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: zero-length vector", ErrInvalidSignature)
	}
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: non-finite component", ErrInvalidSignature)
		}
	}
	return nil
}
