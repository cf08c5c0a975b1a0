// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/gatewatch/internal/domain/attendance"
	"github.com/okian/gatewatch/internal/domain/model"
)

// ReviewDependencies defines the interface for manual review dependencies.
type ReviewDependencies interface {
	ListReviews(ctx context.Context) []model.ReviewCandidate
	ApproveReview(ctx context.Context, reviewID, action string) (attendance.Result, error)
}

// ReviewsHandler handles manual review requests.
type ReviewsHandler struct {
	deps ReviewDependencies
}

// NewReviewsHandler creates a new reviews handler.
func NewReviewsHandler(deps ReviewDependencies) *ReviewsHandler {
	return &ReviewsHandler{deps: deps}
}

// HandleListReviews handles GET /api/v1/reviews requests.
func (h *ReviewsHandler) HandleListReviews(w http.ResponseWriter, r *http.Request) {
	reviews := h.deps.ListReviews(r.Context())
	if reviews == nil {
		reviews = []model.ReviewCandidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reviews": reviews,
		"count":   len(reviews),
	})
}

// approveRequest mirrors the wire schema for POST /reviews/{id}/approve.
type approveRequest struct {
	Action string `json:"action"` // check_in, check_out, or dismiss
}

// HandleApproveReview handles POST /api/v1/reviews/{id}/approve requests.
func (h *ReviewsHandler) HandleApproveReview(w http.ResponseWriter, r *http.Request) {
	const op = "api.approve_review"

	reviewID := chi.URLParam(r, "id")
	if reviewID == "" {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("missing review id")))
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	switch req.Action {
	case "check_in", "check_out", "dismiss":
	default:
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("action must be check_in, check_out, or dismiss")))
		return
	}

	res, err := h.deps.ApproveReview(r.Context(), reviewID, req.Action)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"outcome": res.Outcome,
		"record":  res.Record,
	})
}
