// Package model contains domain models passed between pipeline layers.
package model

import "time"

// Vector is a fixed-length biometric signature embedding.
// All enrolled vectors and detection vectors share one dimension.
type Vector []float32

// BoundingBox locates a face within the source frame, in pixels.
type BoundingBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Detection is a single camera observation carrying a signature vector.
// Immutable once created; downstream records reference it by ID only.
type Detection struct {
	ID            string      `json:"id"`
	CameraID      string      `json:"camera_id"`
	CapturedAt    time.Time   `json:"captured_at"`
	Signature     Vector      `json:"-"`
	Bounds        BoundingBox `json:"bounds"`
	RawConfidence float64     `json:"raw_confidence"`
}

// SignatureSample is one enrolled vector belonging to an identity.
type SignatureSample struct {
	Vector     Vector
	Primary    bool
	EnrolledAt time.Time
}

// Identity is an enrolled person with one or more signature samples.
type Identity struct {
	PersonID   string
	ExternalID string // id in the downstream HR system
	Samples    []SignatureSample
	EnrolledAt time.Time
}

// MatchResult is the outcome of scoring a detection against the signature
// store. PersonID is empty when no identity cleared the threshold. Ephemeral;
// never persisted beyond the processing window.
type MatchResult struct {
	DetectionID string
	PersonID    string
	Confidence  float64
	Distance    float64
	EvaluatedAt time.Time
}

// Matched reports whether the result resolved to an identity.
func (r MatchResult) Matched() bool { return r.PersonID != "" }

// AttendanceStatus enumerates the per-day attendance states.
type AttendanceStatus string

const (
	StatusPending    AttendanceStatus = "pending"
	StatusPresent    AttendanceStatus = "present"
	StatusLate       AttendanceStatus = "late"
	StatusAbsent     AttendanceStatus = "absent"
	StatusEarlyLeave AttendanceStatus = "early_leave"
)

// SyncStatus tracks the record's state against the external system of record.
type SyncStatus string

const (
	SyncUnsynced SyncStatus = "unsynced"
	SyncSynced   SyncStatus = "synced"
	SyncFailed   SyncStatus = "failed"
)

// Mark is one side of an attendance record: a check-in or check-out.
type Mark struct {
	Time        time.Time `json:"time"`
	Confidence  float64   `json:"confidence"`
	DetectionID string    `json:"detection_id,omitempty"`
	CameraID    string    `json:"camera_id,omitempty"`
	Manual      bool      `json:"manual,omitempty"`
}

// AttendanceRecord is the authoritative per-(person, day) attendance state.
// Exactly one record exists per person per day.
type AttendanceRecord struct {
	ID              string           `json:"id"`
	PersonID        string           `json:"person_id"`
	Day             string           `json:"date"` // YYYY-MM-DD, UTC
	CheckIn         *Mark            `json:"check_in,omitempty"`
	CheckOut        *Mark            `json:"check_out,omitempty"`
	DurationMinutes int              `json:"duration_minutes,omitempty"`
	Status          AttendanceStatus `json:"status"`
	SyncStatus      SyncStatus       `json:"sync_status"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// DayKey formats t as the canonical per-day key used across the pipeline.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ReviewCandidate is a detection routed to the manual-review queue instead of
// being auto-applied: confidence in the review band, or captured in the
// midday window.
type ReviewCandidate struct {
	ID          string    `json:"id"`
	DetectionID string    `json:"detection_id"`
	PersonID    string    `json:"person_id"`
	CameraID    string    `json:"camera_id"`
	Confidence  float64   `json:"confidence"`
	ObservedAt  time.Time `json:"observed_at"`
	Reason      string    `json:"reason"`
}

// PersonStatus is the cached point-in-time attendance snapshot for a person.
type PersonStatus struct {
	PersonID        string     `json:"person_id"`
	CheckedIn       bool       `json:"checked_in"`
	CheckInTime     *time.Time `json:"check_in_time,omitempty"`
	CheckOutTime    *time.Time `json:"check_out_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	Status          string     `json:"status"`
}

// EventType classifies messages pushed to live subscribers.
type EventType string

const (
	EventDetection    EventType = "detection"
	EventAttendance   EventType = "attendance_event"
	EventStatusUpdate EventType = "status_update"
	EventSnapshot     EventType = "snapshot"
	EventPing         EventType = "ping"
)

// Event is a state-change notification fanned out to live subscribers.
type Event struct {
	Type       EventType   `json:"type"`
	CameraID   string      `json:"camera_id,omitempty"`
	PersonID   string      `json:"person_id,omitempty"`
	Confidence float64     `json:"confidence,omitempty"`
	At         time.Time   `json:"at"`
	Payload    interface{} `json:"payload,omitempty"`
}

// SyncJob tracks the retrying push of one attendance record to the external
// system. Destroyed on success or after retry exhaustion (dead-letter).
type SyncJob struct {
	RecordID      string    `json:"attendance_record_id"`
	PersonID      string    `json:"person_id"`
	AttemptCount  int       `json:"attempt_count"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	LastError     string    `json:"last_error,omitempty"`
}
