package repository

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"

	"github.com/okian/gatewatch/internal/domain/match"
	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/metrics"
)

// Default signature store configuration constants.
const (
	defaultDimension = 128
	hnswMaxNeighbors = 16
)

// sampleRef maps an index node back to its owning identity.
type sampleRef struct {
	personID string
	stale    bool
}

// MemSignatureStore implements SignatureStore with an in-memory identity map
// and an HNSW graph over all enrolled samples for candidate search.
//
// Re-enrolling a person marks the previous samples stale rather than deleting
// graph nodes; stale hits are filtered out of Nearest results. Enrollments
// are rare enough that the graph never accumulates meaningful garbage.
type MemSignatureStore struct {
	mu         sync.RWMutex
	identities map[string]model.Identity
	samples    map[int64]sampleRef
	byPerson   map[string][]int64
	graph      *hnsw.Graph[int64]
	nextID     int64
	dimension  int
}

// NewMemSignatureStore creates an empty signature store.
func NewMemSignatureStore(opts ...SignatureOption) *MemSignatureStore {
	s := &MemSignatureStore{
		identities: make(map[string]model.Identity),
		samples:    make(map[int64]sampleRef),
		byPerson:   make(map[string][]int64),
		dimension:  defaultDimension,
	}

	for _, opt := range opts {
		opt(s)
	}

	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	s.graph = g

	return s
}

// Enroll adds or replaces an identity and indexes its samples.
func (s *MemSignatureStore) Enroll(ctx context.Context, id model.Identity) error {
	if len(id.Samples) == 0 {
		return fmt.Errorf("enroll %s: %w", id.PersonID, ErrEmptySignature)
	}
	for _, sm := range id.Samples {
		if len(sm.Vector) == 0 {
			return fmt.Errorf("enroll %s: %w", id.PersonID, ErrEmptySignature)
		}
		if len(sm.Vector) != s.dimension {
			return fmt.Errorf("enroll %s: got %d want %d: %w",
				id.PersonID, len(sm.Vector), s.dimension, ErrDimensionMismatch)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Retire any previously indexed samples for this person.
	for _, old := range s.byPerson[id.PersonID] {
		if ref, ok := s.samples[old]; ok {
			ref.stale = true
			s.samples[old] = ref
		}
	}
	s.byPerson[id.PersonID] = s.byPerson[id.PersonID][:0]

	for _, sm := range id.Samples {
		s.nextID++
		key := s.nextID
		s.graph.Add(hnsw.MakeNode(key, sm.Vector))
		s.samples[key] = sampleRef{personID: id.PersonID}
		s.byPerson[id.PersonID] = append(s.byPerson[id.PersonID], key)
	}

	s.identities[id.PersonID] = id
	metrics.UpdateEnrolledIdentities(len(s.identities))
	return nil
}

// Identity returns the enrolled identity for personID.
func (s *MemSignatureStore) Identity(ctx context.Context, personID string) (model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.identities[personID]
	if !ok {
		return model.Identity{}, fmt.Errorf("identity %s: %w", personID, ErrIdentityNotFound)
	}
	return id, nil
}

// Nearest returns up to k candidate samples closest to vec.
func (s *MemSignatureStore) Nearest(ctx context.Context, vec model.Vector, k int) ([]match.Candidate, error) {
	if len(vec) != s.dimension {
		return nil, fmt.Errorf("query: got %d want %d: %w", len(vec), s.dimension, ErrDimensionMismatch)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.identities) == 0 {
		return nil, nil
	}

	// Over-fetch to survive stale hits being filtered out below.
	neighbors := s.graph.Search(vec, k*2)

	out := make([]match.Candidate, 0, k)
	for _, n := range neighbors {
		ref, ok := s.samples[n.Key]
		if !ok || ref.stale {
			continue
		}
		id := s.identities[ref.personID]
		out = append(out, match.Candidate{
			PersonID:   ref.personID,
			Distance:   euclideanDistance(vec, n.Value),
			EnrolledAt: id.EnrolledAt,
		})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Count returns the number of enrolled identities.
func (s *MemSignatureStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}

// euclideanDistance computes the exact L2 distance between two vectors.
// The graph's own distance is used for traversal; the exact value is
// recomputed here so candidate ordering does not depend on index internals.
func euclideanDistance(a, b model.Vector) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
