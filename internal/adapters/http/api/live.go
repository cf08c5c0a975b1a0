// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/gatewatch/internal/domain/model"
)

// LiveDependencies defines the interface for live view dependencies.
type LiveDependencies interface {
	Recent(ctx context.Context, cameraID string, minConfidence float64) []map[string]interface{}
	PersonStatus(ctx context.Context, personID string) model.PersonStatus
}

// LiveHandler handles live view requests.
type LiveHandler struct {
	deps LiveDependencies
}

// NewLiveHandler creates a new live handler.
func NewLiveHandler(deps LiveDependencies) *LiveHandler {
	return &LiveHandler{deps: deps}
}

// HandleGetLive handles GET /api/v1/live requests.
// Query parameters: camera_id and min_confidence narrow the result.
func (h *LiveHandler) HandleGetLive(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_live"

	q := r.URL.Query()
	var minConfidence float64
	if raw := q.Get("min_confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, errors.New("invalid min_confidence; must be in [0, 1]")))
			return
		}
		minConfidence = v
	}

	detections := h.deps.Recent(r.Context(), q.Get("camera_id"), minConfidence)
	if detections == nil {
		detections = []map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"detections": detections,
		"count":      len(detections),
	})
}

// HandleGetPersonStatus handles GET /api/v1/persons/{id}/status requests.
func (h *LiveHandler) HandleGetPersonStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_person_status"

	personID := chi.URLParam(r, "id")
	if personID == "" {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("missing person id")))
		return
	}

	writeJSON(w, http.StatusOK, h.deps.PersonStatus(r.Context(), personID))
}
