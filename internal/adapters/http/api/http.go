// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/gatewatch/internal/domain/attendance"
	"github.com/okian/gatewatch/internal/domain/dedupe"
	"github.com/okian/gatewatch/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes a detection for async processing. Returns false on
	// backpressure.
	Enqueue(ctx context.Context, det model.Detection) bool

	// KnownCamera reports whether the camera id is configured.
	KnownCamera(cameraID string) bool

	// Read operations expose pipeline state.
	Records(ctx context.Context, personID, fromDay, toDay string) ([]model.AttendanceRecord, error)
	Summary(ctx context.Context, day string) (DaySummary, error)
	Recent(ctx context.Context, cameraID string, minConfidence float64) []map[string]interface{}
	PersonStatus(ctx context.Context, personID string) model.PersonStatus
	ListReviews(ctx context.Context) []model.ReviewCandidate
	ApproveReview(ctx context.Context, reviewID, action string) (attendance.Result, error)
	DeadLetter(ctx context.Context) []model.SyncJob
}

// DaySummary aggregates one day's attendance records by status.
type DaySummary struct {
	Day        string                   `json:"date"`
	Total      int                      `json:"total"`
	Present    int                      `json:"present"`
	Late       int                      `json:"late"`
	Absent     int                      `json:"absent"`
	EarlyLeave int                      `json:"early_leave"`
	Pending    int                      `json:"pending"`
	Records    []model.AttendanceRecord `json:"records"`
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps              Dependencies
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	detectionsHandler *DetectionsHandler
	attendanceHandler *AttendanceHandler
	liveHandler       *LiveHandler
	reviewsHandler    *ReviewsHandler
	syncHandler       *SyncHandler
	wsHandler         *WSHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, broadcaster EventSource, opts ...Option) *Server {
	s := &Server{
		deps:              deps,
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		detectionsHandler: NewDetectionsHandler(deps),
		attendanceHandler: NewAttendanceHandler(deps),
		liveHandler:       NewLiveHandler(deps),
		reviewsHandler:    NewReviewsHandler(deps),
		syncHandler:       NewSyncHandler(deps),
		wsHandler:         NewWSHandler(broadcaster),
	}
	s.wsHandler.snapshot = deps

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register attaches all HTTP routes to the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/detections", MetricsMiddleware(s.detectionsHandler.HandlePostDetection, "detections"))
		r.Get("/attendance", MetricsMiddleware(s.attendanceHandler.HandleGetAttendance, "attendance"))
		r.Get("/attendance/summary", MetricsMiddleware(s.attendanceHandler.HandleGetSummary, "attendance_summary"))
		r.Get("/live", MetricsMiddleware(s.liveHandler.HandleGetLive, "live"))
		r.Get("/persons/{id}/status", MetricsMiddleware(s.liveHandler.HandleGetPersonStatus, "person_status"))
		r.Get("/reviews", MetricsMiddleware(s.reviewsHandler.HandleListReviews, "reviews"))
		r.Post("/reviews/{id}/approve", MetricsMiddleware(s.reviewsHandler.HandleApproveReview, "review_approve"))
		r.Get("/sync/deadletter", MetricsMiddleware(s.syncHandler.HandleDeadLetter, "sync_deadletter"))
		r.Get("/ws", s.wsHandler.HandleWS)
	})
}

// detectionRequest mirrors the wire schema for POST /detections.
type detectionRequest struct {
	DetectionID   string             `json:"detection_id"`
	CameraID      string             `json:"camera_id"`
	CapturedAt    string             `json:"captured_at"`
	Signature     []float32          `json:"signature"`
	Bounds        *model.BoundingBox `json:"bounds,omitempty"`
	RawConfidence float64            `json:"raw_confidence"`
}

func (d detectionRequest) validate() error {
	switch {
	case strings.TrimSpace(d.DetectionID) == "":
		return errors.New("missing detection_id")
	case strings.TrimSpace(d.CameraID) == "":
		return errors.New("missing camera_id")
	case strings.TrimSpace(d.CapturedAt) == "":
		return errors.New("missing captured_at")
	case len(d.Signature) == 0:
		return errors.New("missing signature")
	}
	if _, err := time.Parse(time.RFC3339, d.CapturedAt); err != nil {
		return errors.New("invalid captured_at; must be RFC3339")
	}
	return nil
}

func (d detectionRequest) toModel() model.Detection {
	capturedAt, _ := time.Parse(time.RFC3339, d.CapturedAt)
	det := model.Detection{
		ID:            d.DetectionID,
		CameraID:      d.CameraID,
		CapturedAt:    capturedAt.UTC(),
		Signature:     model.Vector(d.Signature),
		RawConfidence: d.RawConfidence,
	}
	if d.Bounds != nil {
		det.Bounds = *d.Bounds
	}
	return det
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
