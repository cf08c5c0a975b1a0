// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/gatewatch/internal/domain/model"
)

// SyncDependencies defines the interface for sync inspection dependencies.
type SyncDependencies interface {
	DeadLetter(ctx context.Context) []model.SyncJob
}

// SyncHandler handles sync inspection requests.
type SyncHandler struct {
	deps SyncDependencies
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps SyncDependencies) *SyncHandler {
	return &SyncHandler{deps: deps}
}

// HandleDeadLetter handles GET /api/v1/sync/deadletter requests.
func (h *SyncHandler) HandleDeadLetter(w http.ResponseWriter, r *http.Request) {
	jobs := h.deps.DeadLetter(r.Context())
	if jobs == nil {
		jobs = []model.SyncJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
