// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/okian/gatewatch/internal/adapters/broadcast"
	"github.com/okian/gatewatch/internal/adapters/cache"
	"github.com/okian/gatewatch/internal/adapters/hrsync"
	"github.com/okian/gatewatch/internal/adapters/http/api"
	detqueue "github.com/okian/gatewatch/internal/adapters/mq/queue"
	workerpool "github.com/okian/gatewatch/internal/adapters/mq/worker"
	"github.com/okian/gatewatch/internal/adapters/repository"
	"github.com/okian/gatewatch/internal/domain/attendance"
	"github.com/okian/gatewatch/internal/domain/dedupe"
	"github.com/okian/gatewatch/internal/domain/match"
	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/logger"
	"github.com/okian/gatewatch/pkg/metrics"
)

const sweepCheckInterval = 10 * time.Minute

// Service implements the API dependencies for the attendance pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	signatures  *repository.MemSignatureStore
	records     *repository.MemAttendanceStore
	reviews     *repository.MemReviewStore
	deduper     dedupe.Deduper
	queue       detqueue.Queue
	engine      match.Engine
	machine     *attendance.Machine
	cache       *cache.LiveCache
	broadcaster *broadcast.Broadcaster
	syncer      *hrsync.Syncer
	pool        *workerpool.Pool

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	shardCount      int
	dimension       int
	autoThreshold   float64
	reviewThreshold float64
	duplicateWindow time.Duration
	morningEnd      time.Duration
	eveningStart    time.Duration
	shiftStart      time.Duration
	shiftEnd        time.Duration
	gracePeriod     time.Duration
	detectionTTL    time.Duration
	statusTTL       time.Duration
	subBuffer       int
	pingTimeout     time.Duration
	cameras         map[string]struct{}
	hrEndpoint      string
	hrToken         string
	syncAttempts    int
	syncInitial     time.Duration
	syncMaxDelay    time.Duration
	sweepTime       time.Duration

	// State
	started      bool
	stopCh       chan struct{}
	lastSweptDay string

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * 4,
		queueSize:       100000,
		dedupeSize:      500000,
		shardCount:      8,
		dimension:       128,
		autoThreshold:   0.7,
		reviewThreshold: 0.6,
		duplicateWindow: 5 * time.Minute,
		morningEnd:      12 * time.Hour,
		eveningStart:    16 * time.Hour,
		shiftStart:      9 * time.Hour,
		shiftEnd:        17 * time.Hour,
		gracePeriod:     10 * time.Minute,
		detectionTTL:    3 * time.Second,
		statusTTL:       30 * time.Second,
		subBuffer:       64,
		pingTimeout:     60 * time.Second,
		cameras:         map[string]struct{}{},
		syncAttempts:    5,
		syncInitial:     30 * time.Second,
		syncMaxDelay:    30 * time.Minute,
		sweepTime:       1 * time.Hour,
		stopCh:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting attendance pipeline...")

	s.signatures = repository.NewMemSignatureStore(
		repository.WithDimension(s.dimension),
	)
	s.records = repository.NewMemAttendanceStore(
		repository.WithShardCount(s.shardCount),
	)
	s.reviews = repository.NewMemReviewStore()
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = detqueue.NewInMemoryQueue(
		detqueue.WithCapacity(s.queueSize),
		detqueue.WithBufferSize(s.queueSize),
	)
	s.cache = cache.NewLiveCache(
		cache.WithDetectionTTL(s.detectionTTL),
		cache.WithStatusTTL(s.statusTTL),
	)
	s.broadcaster = broadcast.NewBroadcaster(
		broadcast.WithBufferSize(s.subBuffer),
		broadcast.WithPingTimeout(s.pingTimeout),
	)
	s.engine = match.NewVectorEngine(s.signatures,
		match.WithThreshold(s.reviewThreshold),
	)
	s.machine = attendance.NewMachine(s.records, s.reviews, s.broadcaster,
		attendance.WithAutoThreshold(s.autoThreshold),
		attendance.WithReviewThreshold(s.reviewThreshold),
		attendance.WithDuplicateWindow(s.duplicateWindow),
		attendance.WithDayBoundaries(s.morningEnd, s.eveningStart),
		attendance.WithShift(s.shiftStart, s.shiftEnd, s.gracePeriod),
	)

	if s.hrEndpoint != "" {
		pusher := hrsync.NewHTTPPusher(s.hrEndpoint, s.hrToken, s.externalID)
		s.syncer = hrsync.NewSyncer(pusher, s.records,
			hrsync.WithMaxAttempts(s.syncAttempts),
			hrsync.WithInitialDelay(s.syncInitial),
			hrsync.WithMaxDelay(s.syncMaxDelay),
		)
		s.syncer.Start(ctx)
	}

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.engine, &applier{s: s},
		workerpool.WithRecorder(s.cache),
		workerpool.WithPublisher(s.broadcaster),
	)
	s.pool.Start(ctx)

	go s.sweepLoop(ctx)

	s.started = true
	s.logger.Info(ctx, "attendance pipeline started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("cameras", len(s.cameras)),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping attendance pipeline...")

	if s.pool != nil {
		s.pool.Stop()
	}
	if q, ok := s.queue.(*detqueue.InMemoryQueue); ok {
		_ = q.Close()
	}
	if s.syncer != nil {
		s.syncer.Stop()
	}
	if s.broadcaster != nil {
		s.broadcaster.Close()
	}
	if s.cache != nil {
		s.cache.Close()
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(context.Background(), "attendance pipeline stopped")
}

// applier runs the state machine for the worker pool and applies the
// post-transition side effects: cache invalidation and sync scheduling.
type applier struct {
	s *Service
}

func (a *applier) Apply(ctx context.Context, det model.Detection, mr model.MatchResult) (attendance.Result, error) {
	res, err := a.s.machine.Apply(ctx, det, mr)
	if err != nil {
		return res, err
	}
	if res.Record != nil {
		a.s.afterTransition(ctx, *res.Record)
	}
	return res, nil
}

func (s *Service) afterTransition(ctx context.Context, rec model.AttendanceRecord) {
	s.cache.InvalidatePersonStatus(rec.PersonID)
	if s.syncer != nil {
		s.syncer.Submit(rec.ID, rec.PersonID)
	}
	metrics.UpdateOpenRecords(s.records.OpenCount(ctx))
}

// externalID resolves a person id to the HR system's identifier.
func (s *Service) externalID(personID string) string {
	id, err := s.signatures.Identity(context.Background(), personID)
	if err != nil {
		return ""
	}
	return id.ExternalID
}

// Broadcaster exposes the live fan-out point for the WebSocket endpoint.
func (s *Service) Broadcaster() *broadcast.Broadcaster {
	return s.broadcaster
}

// Enroll registers an identity with the signature store.
func (s *Service) Enroll(ctx context.Context, id model.Identity) error {
	return s.signatures.Enroll(ctx, id)
}

// SeenAndRecord atomically checks if a detection id was seen and records it
// if not. Returns true if the detection was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord removes a detection id from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Enqueue submits a detection for asynchronous processing.
func (s *Service) Enqueue(ctx context.Context, det model.Detection) bool {
	return s.queue.Enqueue(ctx, det)
}

// KnownCamera reports whether the camera id is configured.
func (s *Service) KnownCamera(cameraID string) bool {
	_, ok := s.cameras[cameraID]
	return ok
}

// Records returns the person's attendance records with day in [fromDay, toDay].
func (s *Service) Records(ctx context.Context, personID, fromDay, toDay string) ([]model.AttendanceRecord, error) {
	return s.records.ByPerson(ctx, personID, fromDay, toDay)
}

// Summary aggregates one day's records by status.
func (s *Service) Summary(ctx context.Context, day string) (api.DaySummary, error) {
	recs, err := s.records.ByDay(ctx, day)
	if err != nil {
		return api.DaySummary{}, err
	}

	summary := api.DaySummary{Day: day, Total: len(recs), Records: recs}
	for _, rec := range recs {
		switch rec.Status {
		case model.StatusPresent:
			summary.Present++
		case model.StatusLate:
			summary.Late++
		case model.StatusAbsent:
			summary.Absent++
		case model.StatusEarlyLeave:
			summary.EarlyLeave++
		case model.StatusPending:
			summary.Pending++
		}
	}
	if summary.Records == nil {
		summary.Records = []model.AttendanceRecord{}
	}
	return summary, nil
}

// Recent returns unexpired live detections.
func (s *Service) Recent(ctx context.Context, cameraID string, minConfidence float64) []map[string]interface{} {
	return s.cache.Recent(ctx, cameraID, minConfidence)
}

// PersonStatus returns the person's current-day snapshot, cached briefly.
func (s *Service) PersonStatus(ctx context.Context, personID string) model.PersonStatus {
	if status, ok := s.cache.PersonStatus(ctx, personID); ok {
		return status
	}
	status := s.machine.Status(ctx, personID, time.Now().UTC())
	s.cache.PutPersonStatus(ctx, status)
	return status
}

// ListReviews returns pending review candidates, oldest first.
func (s *Service) ListReviews(ctx context.Context) []model.ReviewCandidate {
	return s.reviews.List(ctx)
}

// ApproveReview resolves a review candidate: apply it as a transition or
// dismiss it.
func (s *Service) ApproveReview(ctx context.Context, reviewID, action string) (attendance.Result, error) {
	candidate, err := s.reviews.Take(ctx, reviewID)
	if err != nil {
		return attendance.Result{}, err
	}

	if action == "dismiss" {
		s.logger.Info(ctx, "review candidate dismissed",
			logger.String("review_id", reviewID),
			logger.String("person_id", candidate.PersonID),
		)
		return attendance.Result{Outcome: attendance.OutcomeIgnored}, nil
	}

	res, err := s.machine.Approve(ctx, candidate, action)
	if err != nil {
		return res, err
	}
	if res.Record != nil {
		s.afterTransition(ctx, *res.Record)
	}
	return res, nil
}

// DeadLetter returns sync jobs that exhausted their retries.
func (s *Service) DeadLetter(ctx context.Context) []model.SyncJob {
	if s.syncer == nil {
		return nil
	}
	return s.syncer.DeadLetter()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"cameras":     len(s.cameras),
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["enrolledIdentities"] = s.signatures.Count(ctx)
		stats["attendanceRecords"] = s.records.Count(ctx)
		stats["openRecords"] = s.records.OpenCount(ctx)
		stats["pendingReviews"] = s.reviews.Len(ctx)
		stats["subscribers"] = s.broadcaster.Len()
		if s.syncer != nil {
			stats["syncBacklog"] = s.syncer.Backlog()
			stats["deadLetter"] = len(s.syncer.DeadLetter())
		}
	}

	return stats
}

// sweepLoop finalizes the previous day's pending records once the configured
// sweep offset has passed.
func (s *Service) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.maybeSweep(ctx, now.UTC())
		}
	}
}

func (s *Service) maybeSweep(ctx context.Context, now time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if now.Sub(midnight) < s.sweepTime {
		return
	}

	yesterday := model.DayKey(midnight.AddDate(0, 0, -1))

	s.mu.Lock()
	if s.lastSweptDay == yesterday {
		s.mu.Unlock()
		return
	}
	s.lastSweptDay = yesterday
	s.mu.Unlock()

	swept, err := s.machine.Sweep(ctx, yesterday)
	if err != nil {
		s.logger.Error(ctx, "end-of-day sweep failed", logger.Error(err))
		return
	}

	// Everything the sweep finalized still needs to reach the HR system.
	if s.syncer != nil {
		recs, err := s.records.ByDay(ctx, yesterday)
		if err == nil {
			for _, rec := range recs {
				if rec.SyncStatus == model.SyncUnsynced {
					s.syncer.Submit(rec.ID, rec.PersonID)
				}
			}
		}
	}

	if swept > 0 {
		s.logger.Info(ctx, "daily sweep complete",
			logger.String("day", yesterday),
			logger.Int("finalized", swept),
		)
	}
}
