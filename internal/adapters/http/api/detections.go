// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/gatewatch/internal/domain/dedupe"
	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/metrics"
)

// DetectionDependencies defines the interface for detection ingest dependencies.
type DetectionDependencies interface {
	dedupe.Deduper
	Enqueue(ctx context.Context, det model.Detection) bool
	KnownCamera(cameraID string) bool
}

// DetectionsHandler handles detection ingest requests.
type DetectionsHandler struct {
	deps    DetectionDependencies
	limiter *cameraLimiter
}

// NewDetectionsHandler creates a new detections handler.
func NewDetectionsHandler(deps DetectionDependencies) *DetectionsHandler {
	return &DetectionsHandler{deps: deps}
}

// HandlePostDetection handles POST /api/v1/detections requests.
func (h *DetectionsHandler) HandlePostDetection(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_detection"

	var req detectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordDetectionRejected("malformed")
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		metrics.RecordDetectionRejected("invalid")
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if !h.deps.KnownCamera(req.CameraID) {
		metrics.RecordDetectionRejected("unknown_camera")
		writeError(w, http.StatusNotFound, "unknown_camera", NewKind(op, ErrUnknownCamera))
		return
	}

	if h.limiter != nil && !h.limiter.allow(req.CameraID) {
		metrics.RecordDetectionRejected("rate_limited")
		writeError(w, http.StatusTooManyRequests, "rate_limited", NewKind(op, ErrRateLimited))
		return
	}

	// Idempotency check - mark as seen first
	if h.deps.SeenAndRecord(r.Context(), req.DetectionID) {
		metrics.RecordDetectionDuplicate()
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	// Try to enqueue for async processing
	if ok := h.deps.Enqueue(r.Context(), req.toModel()); !ok {
		// Rollback the "seen" status since enqueue failed
		h.deps.Unrecord(r.Context(), req.DetectionID)
		metrics.RecordDetectionRejected("backpressure")
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}

	metrics.RecordDetectionAccepted()
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
