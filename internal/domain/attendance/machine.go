// Package attendance owns per-(person, day) attendance records and decides,
// for each matched detection, whether and how the day's record transitions.
package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/logger"
	"github.com/okian/gatewatch/pkg/metrics"
)

// Default state machine configuration constants. Clock offsets are measured
// from midnight UTC of the detection's day.
const (
	defaultAutoThreshold   = 0.7
	defaultReviewThreshold = 0.6
	defaultDuplicateWindow = 5 * time.Minute
	defaultMorningEnd      = 12 * time.Hour // check-in window closes
	defaultEveningStart    = 16 * time.Hour // check-out window opens
	defaultShiftStart      = 9 * time.Hour
	defaultShiftEnd        = 17 * time.Hour
	defaultGracePeriod     = 10 * time.Minute
	defaultLockShards      = 64
)

// RecordStore is the slice of the attendance repository the machine needs.
type RecordStore interface {
	Get(ctx context.Context, personID, day string) (model.AttendanceRecord, error)
	Put(ctx context.Context, rec model.AttendanceRecord) error
	ByDay(ctx context.Context, day string) ([]model.AttendanceRecord, error)
}

// ReviewSink receives detections that need a human decision.
type ReviewSink interface {
	Add(ctx context.Context, c model.ReviewCandidate) error
}

// Publisher receives change events for fan-out to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev model.Event)
}

// Outcome classifies what a detection did to the day's record.
type Outcome string

const (
	OutcomeCheckIn   Outcome = "check_in"
	OutcomeCheckOut  Outcome = "check_out"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeReview    Outcome = "review"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeNoCheckIn Outcome = "no_check_in"
)

// Result reports the applied transition. Record is set when the day's record
// was mutated; Review is set when the detection landed in the review queue.
type Result struct {
	Outcome Outcome
	Record  *model.AttendanceRecord
	Review  *model.ReviewCandidate
}

// Machine applies matched detections to attendance records.
//
// Processing for the same (person, day) key is serialized through a keyed
// lock table; different keys proceed in parallel. This is the single mutual
// exclusion point of the pipeline.
type Machine struct {
	store   RecordStore
	reviews ReviewSink
	pub     Publisher

	autoThreshold   float64
	reviewThreshold float64
	duplicateWindow time.Duration
	morningEnd      time.Duration
	eveningStart    time.Duration
	shiftStart      time.Duration
	shiftEnd        time.Duration
	gracePeriod     time.Duration

	locks *keyedMutex

	mu       sync.Mutex
	lastSeen map[string]time.Time // personID -> last processed detection time

	logger logger.Logger
}

// NewMachine creates a state machine with configuration options.
func NewMachine(store RecordStore, reviews ReviewSink, pub Publisher, opts ...Option) *Machine {
	m := &Machine{
		store:           store,
		reviews:         reviews,
		pub:             pub,
		autoThreshold:   defaultAutoThreshold,
		reviewThreshold: defaultReviewThreshold,
		duplicateWindow: defaultDuplicateWindow,
		morningEnd:      defaultMorningEnd,
		eveningStart:    defaultEveningStart,
		shiftStart:      defaultShiftStart,
		shiftEnd:        defaultShiftEnd,
		gracePeriod:     defaultGracePeriod,
		lastSeen:        make(map[string]time.Time),
		logger:          logger.Get().Named("attendance"),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.locks = newKeyedMutex(defaultLockShards)
	return m
}

// Apply evaluates one matched detection against the person's day record.
// Unmatched results and confidences below the review threshold are ignored;
// the caller has already logged them.
func (m *Machine) Apply(ctx context.Context, det model.Detection, mr model.MatchResult) (Result, error) {
	if !mr.Matched() || mr.Confidence < m.reviewThreshold {
		return Result{Outcome: OutcomeIgnored}, nil
	}

	day := model.DayKey(det.CapturedAt)
	unlock := m.locks.lock(mr.PersonID + "/" + day)
	defer unlock()

	// Duplicate suppression: a detection of the same person inside the
	// window produces no transition and no side effect at all.
	if m.withinDuplicateWindow(mr.PersonID, det.CapturedAt) {
		metrics.RecordTransition(string(OutcomeDuplicate))
		return Result{Outcome: OutcomeDuplicate}, nil
	}

	// Review band: recorded for a human, never auto-applied and never
	// silently discarded.
	if mr.Confidence < m.autoThreshold {
		return m.queueReview(ctx, det, mr, "confidence below auto threshold")
	}

	elapsed := sinceMidnight(det.CapturedAt)
	switch {
	case elapsed < m.morningEnd:
		return m.applyCheckIn(ctx, det, mr, day, false)
	case elapsed >= m.eveningStart:
		return m.applyCheckOut(ctx, det, mr, day, false)
	default:
		return m.queueReview(ctx, det, mr, "midday detection requires manual review")
	}
}

// Approve applies a review candidate as a check-in or check-out. The
// time-of-day heuristic is bypassed; duplicate suppression still holds.
func (m *Machine) Approve(ctx context.Context, c model.ReviewCandidate, action string) (Result, error) {
	det := model.Detection{
		ID:         c.DetectionID,
		CameraID:   c.CameraID,
		CapturedAt: c.ObservedAt,
	}
	mr := model.MatchResult{
		DetectionID: c.DetectionID,
		PersonID:    c.PersonID,
		Confidence:  c.Confidence,
	}

	day := model.DayKey(det.CapturedAt)
	unlock := m.locks.lock(c.PersonID + "/" + day)
	defer unlock()

	if m.withinDuplicateWindow(c.PersonID, det.CapturedAt) {
		metrics.RecordTransition(string(OutcomeDuplicate))
		return Result{Outcome: OutcomeDuplicate}, nil
	}

	switch action {
	case "check_in":
		return m.applyCheckIn(ctx, det, mr, day, true)
	case "check_out":
		return m.applyCheckOut(ctx, det, mr, day, true)
	default:
		return Result{}, fmt.Errorf("approve %s: %w: %q", c.ID, ErrInvalidAction, action)
	}
}

// Sweep finalizes a day that has fully elapsed: records still pending with no
// check-in degrade to absent and are queued for sync.
func (m *Machine) Sweep(ctx context.Context, day string) (int, error) {
	recs, err := m.store.ByDay(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("sweep %s: %w", day, err)
	}

	var swept int
	for _, rec := range recs {
		if rec.Status != model.StatusPending || rec.CheckIn != nil {
			continue
		}

		unlock := m.locks.lock(rec.PersonID + "/" + day)
		cur, err := m.store.Get(ctx, rec.PersonID, day)
		if err != nil || cur.Status != model.StatusPending || cur.CheckIn != nil {
			unlock()
			continue
		}
		cur.Status = model.StatusAbsent
		cur.SyncStatus = model.SyncUnsynced
		if err := m.store.Put(ctx, cur); err != nil {
			unlock()
			return swept, fmt.Errorf("sweep %s: %w", day, err)
		}
		unlock()

		swept++
		metrics.RecordTransition("absent")
		m.publish(ctx, cur, model.EventStatusUpdate, 0, "")
	}

	if swept > 0 {
		m.logger.Info(ctx, "end-of-day sweep finalized pending records",
			logger.String("day", day),
			logger.Int("records", swept),
		)
	}
	return swept, nil
}

// Status builds the point-in-time snapshot for a person's current day.
func (m *Machine) Status(ctx context.Context, personID string, now time.Time) model.PersonStatus {
	rec, err := m.store.Get(ctx, personID, model.DayKey(now))
	if err != nil || rec.CheckIn == nil {
		return model.PersonStatus{PersonID: personID, Status: "not_checked_in"}
	}

	if rec.CheckOut != nil {
		return model.PersonStatus{
			PersonID:        personID,
			CheckedIn:       false,
			CheckInTime:     &rec.CheckIn.Time,
			CheckOutTime:    &rec.CheckOut.Time,
			DurationMinutes: rec.DurationMinutes,
			Status:          "checked_out",
		}
	}

	return model.PersonStatus{
		PersonID:        personID,
		CheckedIn:       true,
		CheckInTime:     &rec.CheckIn.Time,
		DurationMinutes: int(now.Sub(rec.CheckIn.Time).Minutes()),
		Status:          "checked_in",
	}
}

func (m *Machine) applyCheckIn(ctx context.Context, det model.Detection, mr model.MatchResult, day string, manual bool) (Result, error) {
	rec := m.getOrCreate(ctx, mr.PersonID, day)

	// A day holds at most one check-in; later sightings never move it.
	if rec.CheckIn != nil {
		m.markSeen(mr.PersonID, det.CapturedAt)
		metrics.RecordTransition(string(OutcomeDuplicate))
		return Result{Outcome: OutcomeDuplicate, Record: &rec}, nil
	}

	rec.CheckIn = &model.Mark{
		Time:        det.CapturedAt,
		Confidence:  mr.Confidence,
		DetectionID: det.ID,
		CameraID:    det.CameraID,
		Manual:      manual,
	}
	if sinceMidnight(det.CapturedAt) > m.shiftStart+m.gracePeriod {
		rec.Status = model.StatusLate
	} else {
		rec.Status = model.StatusPresent
	}
	rec.SyncStatus = model.SyncUnsynced

	if err := m.store.Put(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("check-in %s: %w", mr.PersonID, err)
	}
	m.markSeen(mr.PersonID, det.CapturedAt)

	metrics.RecordTransition(string(OutcomeCheckIn))
	m.logger.Info(ctx, "check-in recorded",
		logger.String("person_id", mr.PersonID),
		logger.String("day", day),
		logger.Float64("confidence", mr.Confidence),
		logger.Bool("manual", manual),
	)
	m.publish(ctx, rec, model.EventAttendance, mr.Confidence, det.CameraID)
	return Result{Outcome: OutcomeCheckIn, Record: &rec}, nil
}

func (m *Machine) applyCheckOut(ctx context.Context, det model.Detection, mr model.MatchResult, day string, manual bool) (Result, error) {
	rec, err := m.store.Get(ctx, mr.PersonID, day)
	if err != nil || rec.CheckIn == nil {
		// A check-out with nothing to close mutates nothing.
		m.logger.Warn(ctx, "check-out without check-in",
			logger.String("person_id", mr.PersonID),
			logger.String("day", day),
		)
		metrics.RecordTransition(string(OutcomeNoCheckIn))
		return Result{Outcome: OutcomeNoCheckIn}, nil
	}

	rec.CheckOut = &model.Mark{
		Time:        det.CapturedAt,
		Confidence:  mr.Confidence,
		DetectionID: det.ID,
		CameraID:    det.CameraID,
		Manual:      manual,
	}
	rec.DurationMinutes = int(det.CapturedAt.Sub(rec.CheckIn.Time).Minutes())
	// Last sighting wins, and the status follows the final departure: a later
	// check-out at or past shift end clears an earlier early-leave mark.
	switch {
	case sinceMidnight(det.CapturedAt) < m.shiftEnd:
		rec.Status = model.StatusEarlyLeave
	case sinceMidnight(rec.CheckIn.Time) > m.shiftStart+m.gracePeriod:
		rec.Status = model.StatusLate
	default:
		rec.Status = model.StatusPresent
	}
	rec.SyncStatus = model.SyncUnsynced

	if err := m.store.Put(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("check-out %s: %w", mr.PersonID, err)
	}
	m.markSeen(mr.PersonID, det.CapturedAt)

	metrics.RecordTransition(string(OutcomeCheckOut))
	m.logger.Info(ctx, "check-out recorded",
		logger.String("person_id", mr.PersonID),
		logger.String("day", day),
		logger.Int("duration_minutes", rec.DurationMinutes),
		logger.Bool("manual", manual),
	)
	m.publish(ctx, rec, model.EventAttendance, mr.Confidence, det.CameraID)
	return Result{Outcome: OutcomeCheckOut, Record: &rec}, nil
}

func (m *Machine) queueReview(ctx context.Context, det model.Detection, mr model.MatchResult, reason string) (Result, error) {
	c := model.ReviewCandidate{
		ID:          uuid.NewString(),
		DetectionID: det.ID,
		PersonID:    mr.PersonID,
		CameraID:    det.CameraID,
		Confidence:  mr.Confidence,
		ObservedAt:  det.CapturedAt,
		Reason:      reason,
	}
	if err := m.reviews.Add(ctx, c); err != nil {
		return Result{}, fmt.Errorf("queue review %s: %w", det.ID, err)
	}
	m.markSeen(mr.PersonID, det.CapturedAt)

	metrics.RecordTransition(string(OutcomeReview))
	m.logger.Debug(ctx, "detection routed to review queue",
		logger.String("person_id", mr.PersonID),
		logger.String("reason", reason),
		logger.Float64("confidence", mr.Confidence),
	)
	return Result{Outcome: OutcomeReview, Review: &c}, nil
}

func (m *Machine) getOrCreate(ctx context.Context, personID, day string) model.AttendanceRecord {
	rec, err := m.store.Get(ctx, personID, day)
	if err == nil {
		return rec
	}
	return model.AttendanceRecord{
		ID:         uuid.NewString(),
		PersonID:   personID,
		Day:        day,
		Status:     model.StatusPending,
		SyncStatus: model.SyncUnsynced,
	}
}

func (m *Machine) withinDuplicateWindow(personID string, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.lastSeen[personID]
	if !ok {
		return false
	}
	d := at.Sub(last)
	if d < 0 {
		d = -d
	}
	return d < m.duplicateWindow
}

func (m *Machine) markSeen(personID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if at.After(m.lastSeen[personID]) {
		m.lastSeen[personID] = at
	}
}

func (m *Machine) publish(ctx context.Context, rec model.AttendanceRecord, t model.EventType, confidence float64, cameraID string) {
	if m.pub == nil {
		return
	}
	m.pub.Publish(ctx, model.Event{
		Type:       t,
		CameraID:   cameraID,
		PersonID:   rec.PersonID,
		Confidence: confidence,
		At:         time.Now().UTC(),
		Payload:    rec,
	})
}

// sinceMidnight returns the UTC clock offset of t within its day.
func sinceMidnight(t time.Time) time.Duration {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return t.Sub(midnight)
}
