package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/metrics"
)

// MemReviewStore implements ReviewStore with an ordered in-memory list.
type MemReviewStore struct {
	mu      sync.Mutex
	pending []model.ReviewCandidate
	byID    map[string]int
}

// NewMemReviewStore creates an empty review store.
func NewMemReviewStore() *MemReviewStore {
	return &MemReviewStore{byID: make(map[string]int)}
}

// Add appends a review candidate.
func (s *MemReviewStore) Add(ctx context.Context, c model.ReviewCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[c.ID]; ok {
		return nil // already queued
	}
	s.byID[c.ID] = len(s.pending)
	s.pending = append(s.pending, c)
	metrics.UpdateReviewQueueSize(len(s.pending))
	return nil
}

// List returns pending candidates, oldest first.
func (s *MemReviewStore) List(ctx context.Context) []model.ReviewCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.ReviewCandidate, len(s.pending))
	copy(out, s.pending)
	return out
}

// Take removes and returns the candidate with the given id.
func (s *MemReviewStore) Take(ctx context.Context, id string) (model.ReviewCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[id]
	if !ok {
		return model.ReviewCandidate{}, fmt.Errorf("review %s: %w", id, ErrReviewNotFound)
	}
	c := s.pending[i]

	s.pending = append(s.pending[:i], s.pending[i+1:]...)
	delete(s.byID, id)
	for j := i; j < len(s.pending); j++ {
		s.byID[s.pending[j].ID] = j
	}
	metrics.UpdateReviewQueueSize(len(s.pending))
	return c, nil
}

// Len returns the number of pending candidates.
func (s *MemReviewStore) Len(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
