// Package hrsync pushes finalized attendance records to the external HR
// system with retries. Sync state is decoupled from ingestion: a slow or
// unreachable HR endpoint backs up the sync queue, never the camera pipeline.
package hrsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/logger"
	"github.com/okian/gatewatch/pkg/metrics"
)

// Default sync configuration constants.
const (
	defaultMaxAttempts  = 5
	defaultInitialDelay = 30 * time.Second
	defaultMaxDelay     = 30 * time.Minute
	defaultPollInterval = 5 * time.Second
)

// Pusher delivers one record to the external system.
type Pusher interface {
	Push(ctx context.Context, rec model.AttendanceRecord) error
}

// RecordSource reads records and flips their sync status.
type RecordSource interface {
	ByID(ctx context.Context, recordID string) (model.AttendanceRecord, error)
	MarkSync(ctx context.Context, recordID string, status model.SyncStatus) error
}

// PermanentError marks a push failure that retrying cannot fix, such as a
// rejected payload. The job goes straight to the dead letter queue.
type PermanentError struct {
	error
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{err}
}

func (e *PermanentError) Unwrap() error { return e.error }

// Syncer owns the pending sync jobs and the dead letter queue.
type Syncer struct {
	pusher Pusher
	source RecordSource

	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	pollInterval time.Duration

	mu         sync.Mutex
	jobs       map[string]*model.SyncJob // keyed by record id
	deadLetter []model.SyncJob

	stop chan struct{}
	done chan struct{}
	once sync.Once

	logger logger.Logger
}

// NewSyncer creates a syncer with configuration options. Call Start to begin
// draining jobs.
func NewSyncer(pusher Pusher, source RecordSource, opts ...Option) *Syncer {
	s := &Syncer{
		pusher:       pusher,
		source:       source,
		maxAttempts:  defaultMaxAttempts,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		pollInterval: defaultPollInterval,
		jobs:         make(map[string]*model.SyncJob),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger.Get().Named("hrsync"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Submit schedules a record for sync. Resubmitting a record already queued
// resets nothing; the existing job keeps its attempt count.
func (s *Syncer) Submit(recordID, personID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[recordID]; ok {
		return
	}
	s.jobs[recordID] = &model.SyncJob{
		RecordID:      recordID,
		PersonID:      personID,
		NextAttemptAt: time.Now(),
	}
	metrics.UpdateSyncBacklog(len(s.jobs))
}

// Start runs the drain loop until ctx is canceled or Stop is called.
func (s *Syncer) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.drain(ctx)
			}
		}
	}()
}

// Stop halts the drain loop. Pending jobs remain queued.
func (s *Syncer) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// DeadLetter returns a copy of the exhausted jobs, newest last.
func (s *Syncer) DeadLetter() []model.SyncJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SyncJob, len(s.deadLetter))
	copy(out, s.deadLetter)
	return out
}

// Backlog returns the number of jobs still awaiting a successful push.
func (s *Syncer) Backlog() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// drain attempts every job whose backoff deadline has passed.
func (s *Syncer) drain(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	due := make([]*model.SyncJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if !job.NextAttemptAt.After(now) {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.attempt(ctx, job)
	}
}

func (s *Syncer) attempt(ctx context.Context, job *model.SyncJob) {
	metrics.RecordSyncAttempt()

	rec, err := s.source.ByID(ctx, job.RecordID)
	if err != nil {
		// The record vanished; nothing left to sync.
		s.logger.Warn(ctx, "sync job references missing record",
			logger.String("record_id", job.RecordID),
			logger.Error(err),
		)
		s.remove(job.RecordID)
		return
	}

	err = s.pusher.Push(ctx, rec)
	if err == nil {
		if err := s.source.MarkSync(ctx, job.RecordID, model.SyncSynced); err != nil {
			s.logger.Error(ctx, "failed to mark record synced", logger.Error(err))
		}
		metrics.RecordSyncSuccess()
		s.logger.Info(ctx, "attendance record synced",
			logger.String("record_id", job.RecordID),
			logger.String("person_id", job.PersonID),
			logger.Int("attempts", job.AttemptCount+1),
		)
		s.remove(job.RecordID)
		return
	}

	job.AttemptCount++
	job.LastError = err.Error()

	var perm *PermanentError
	if errors.As(err, &perm) {
		metrics.RecordSyncFailure("permanent")
		s.toDeadLetter(ctx, job, "permanent error")
		return
	}

	metrics.RecordSyncFailure("transient")
	if job.AttemptCount >= s.maxAttempts {
		s.toDeadLetter(ctx, job, "retries exhausted")
		return
	}

	job.NextAttemptAt = time.Now().Add(s.delayFor(job.AttemptCount))
	s.logger.Warn(ctx, "sync attempt failed, will retry",
		logger.String("record_id", job.RecordID),
		logger.Int("attempt", job.AttemptCount),
		logger.Time("next_attempt_at", job.NextAttemptAt),
		logger.Error(err),
	)
}

// delayFor computes the backoff before attempt n+1: initialDelay doubled per
// prior attempt, capped at maxDelay.
func (s *Syncer) delayFor(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialDelay
	b.Multiplier = 2
	b.MaxInterval = s.maxDelay
	b.RandomizationFactor = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		d = b.NextBackOff()
	}
	if d == backoff.Stop || d > s.maxDelay {
		d = s.maxDelay
	}
	return d
}

func (s *Syncer) toDeadLetter(ctx context.Context, job *model.SyncJob, reason string) {
	if err := s.source.MarkSync(ctx, job.RecordID, model.SyncFailed); err != nil {
		s.logger.Error(ctx, "failed to mark record sync-failed", logger.Error(err))
	}

	s.mu.Lock()
	delete(s.jobs, job.RecordID)
	s.deadLetter = append(s.deadLetter, *job)
	backlog := len(s.jobs)
	s.mu.Unlock()

	metrics.RecordSyncDeadLetter()
	metrics.UpdateSyncBacklog(backlog)
	s.logger.Error(ctx, "sync job dead-lettered",
		logger.String("record_id", job.RecordID),
		logger.String("reason", reason),
		logger.Int("attempts", job.AttemptCount),
		logger.String("last_error", job.LastError),
	)
}

func (s *Syncer) remove(recordID string) {
	s.mu.Lock()
	delete(s.jobs, recordID)
	backlog := len(s.jobs)
	s.mu.Unlock()
	metrics.UpdateSyncBacklog(backlog)
}
