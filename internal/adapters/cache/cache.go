// Package cache holds short-lived pipeline state: recent detections for the
// live endpoint and person status snapshots. Entries expire on read and are
// reaped by a background janitor, so a quiet cache does not grow.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/metrics"
)

const (
	defaultDetectionTTL = 3 * time.Second
	defaultStatusTTL    = 30 * time.Second
	defaultSweepEvery   = 5 * time.Second
)

type detectionEntry struct {
	det       liveDetection
	expiresAt time.Time
}

type statusEntry struct {
	status    model.PersonStatus
	expiresAt time.Time
}

// liveDetection is the wire shape of a recent detection: the raw signature
// never leaves the pipeline.
type liveDetection struct {
	DetectionID string    `json:"detection_id"`
	CameraID    string    `json:"camera_id"`
	PersonID    string    `json:"person_id,omitempty"`
	Confidence  float64   `json:"confidence"`
	CapturedAt  time.Time `json:"captured_at"`
}

// LiveCache is an in-memory TTL cache.
type LiveCache struct {
	mu         sync.RWMutex
	detections map[string]detectionEntry
	statuses   map[string]statusEntry

	detectionTTL time.Duration
	statusTTL    time.Duration
	sweepEvery   time.Duration

	stop chan struct{}
	once sync.Once
}

// NewLiveCache creates the cache and starts its janitor goroutine.
func NewLiveCache(opts ...Option) *LiveCache {
	c := &LiveCache{
		detections:   make(map[string]detectionEntry),
		statuses:     make(map[string]statusEntry),
		detectionTTL: defaultDetectionTTL,
		statusTTL:    defaultStatusTTL,
		sweepEvery:   defaultSweepEvery,
		stop:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.janitor()
	return c
}

// PutDetection records a processed detection for the live endpoint. Keyed by
// camera: only the most recent detection per camera matters for live reads, a
// newer one overwrites its predecessor.
func (c *LiveCache) PutDetection(_ context.Context, det model.Detection, personID string, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detections[det.CameraID] = detectionEntry{
		det: liveDetection{
			DetectionID: det.ID,
			CameraID:    det.CameraID,
			PersonID:    personID,
			Confidence:  confidence,
			CapturedAt:  det.CapturedAt,
		},
		expiresAt: time.Now().Add(c.detectionTTL),
	}
}

// Recent returns the latest unexpired detection per camera, optionally
// filtered by camera and minimum confidence. Order is unspecified.
func (c *LiveCache) Recent(_ context.Context, cameraID string, minConfidence float64) []map[string]interface{} {
	now := time.Now()

	c.mu.RLock()
	out := make([]map[string]interface{}, 0, len(c.detections))
	for _, e := range c.detections {
		if now.After(e.expiresAt) {
			continue
		}
		if cameraID != "" && e.det.CameraID != cameraID {
			continue
		}
		if e.det.Confidence < minConfidence {
			continue
		}
		out = append(out, map[string]interface{}{
			"detection_id": e.det.DetectionID,
			"camera_id":    e.det.CameraID,
			"person_id":    e.det.PersonID,
			"confidence":   e.det.Confidence,
			"captured_at":  e.det.CapturedAt,
		})
	}
	c.mu.RUnlock()

	if len(out) > 0 {
		metrics.RecordCacheHit("detections")
	} else {
		metrics.RecordCacheMiss("detections")
	}
	return out
}

// PutPersonStatus caches a status snapshot.
func (c *LiveCache) PutPersonStatus(_ context.Context, s model.PersonStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[s.PersonID] = statusEntry{status: s, expiresAt: time.Now().Add(c.statusTTL)}
}

// PersonStatus returns the cached snapshot, if still fresh.
func (c *LiveCache) PersonStatus(_ context.Context, personID string) (model.PersonStatus, bool) {
	c.mu.RLock()
	e, ok := c.statuses[personID]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		metrics.RecordCacheMiss("person_status")
		return model.PersonStatus{}, false
	}
	metrics.RecordCacheHit("person_status")
	return e.status, true
}

// InvalidatePersonStatus drops the cached snapshot after a state change so the
// next read rebuilds it from the record store.
func (c *LiveCache) InvalidatePersonStatus(personID string) {
	c.mu.Lock()
	delete(c.statuses, personID)
	c.mu.Unlock()
}

// Close stops the janitor. Idempotent.
func (c *LiveCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *LiveCache) janitor() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for id, e := range c.detections {
				if now.After(e.expiresAt) {
					delete(c.detections, id)
				}
			}
			for id, e := range c.statuses {
				if now.After(e.expiresAt) {
					delete(c.statuses, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
