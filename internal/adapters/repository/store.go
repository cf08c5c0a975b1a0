// Package repository defines the persisted-state store interfaces and errors.
package repository

import (
	"context"

	"github.com/okian/gatewatch/internal/domain/match"
	"github.com/okian/gatewatch/internal/domain/model"
)

// SignatureStore holds enrolled identities and serves nearest-neighbor
// candidate lookups for the matching engine. Read-heavy; enrollments are
// append-mostly and matches against a slightly stale signature set are
// acceptable.
type SignatureStore interface {
	match.Index

	// Enroll adds or replaces an identity and its signature samples.
	Enroll(ctx context.Context, id model.Identity) error

	// Identity returns the enrolled identity for personID.
	// Returns ErrIdentityNotFound if unknown.
	Identity(ctx context.Context, personID string) (model.Identity, error)
}

// AttendanceStore provides read/write access to per-(person, day) records.
// Callers are responsible for per-key serialization; the store itself only
// guarantees that individual operations are safe for concurrent use.
type AttendanceStore interface {
	// Get returns the record for (personID, day).
	// Returns ErrRecordNotFound if absent.
	Get(ctx context.Context, personID, day string) (model.AttendanceRecord, error)

	// Put upserts a record keyed by (PersonID, Day).
	Put(ctx context.Context, rec model.AttendanceRecord) error

	// ByID returns the record with the given id.
	// Returns ErrRecordNotFound if absent.
	ByID(ctx context.Context, recordID string) (model.AttendanceRecord, error)

	// ByDay returns all records for a day.
	ByDay(ctx context.Context, day string) ([]model.AttendanceRecord, error)

	// ByPerson returns the person's records with day in [fromDay, toDay].
	ByPerson(ctx context.Context, personID, fromDay, toDay string) ([]model.AttendanceRecord, error)

	// MarkSync updates the sync status of the record with the given id.
	MarkSync(ctx context.Context, recordID string, status model.SyncStatus) error

	// OpenCount returns the number of records with a check-in but no check-out.
	OpenCount(ctx context.Context) int

	// Count returns the total number of records.
	Count(ctx context.Context) int
}

// ReviewStore queues detections that need a human decision.
type ReviewStore interface {
	// Add appends a review candidate.
	Add(ctx context.Context, c model.ReviewCandidate) error

	// List returns pending candidates, oldest first.
	List(ctx context.Context) []model.ReviewCandidate

	// Take removes and returns the candidate with the given id.
	// Returns ErrReviewNotFound if absent.
	Take(ctx context.Context, id string) (model.ReviewCandidate, error)

	// Len returns the number of pending candidates.
	Len(ctx context.Context) int
}
