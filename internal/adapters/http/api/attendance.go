// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/okian/gatewatch/internal/domain/model"
)

// AttendanceDependencies defines the interface for attendance query dependencies.
type AttendanceDependencies interface {
	Records(ctx context.Context, personID, fromDay, toDay string) ([]model.AttendanceRecord, error)
	Summary(ctx context.Context, day string) (DaySummary, error)
}

// AttendanceHandler handles attendance query requests.
type AttendanceHandler struct {
	deps AttendanceDependencies
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(deps AttendanceDependencies) *AttendanceHandler {
	return &AttendanceHandler{deps: deps}
}

// HandleGetAttendance handles GET /api/v1/attendance requests.
// Query parameters: person_id (required), date or from/to (optional; defaults
// to today).
func (h *AttendanceHandler) HandleGetAttendance(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_attendance"

	personID := r.URL.Query().Get("person_id")
	if personID == "" {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("missing person_id")))
		return
	}

	fromDay, toDay, err := dayRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	recs, err := h.deps.Records(r.Context(), personID, fromDay, toDay)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	if recs == nil {
		recs = []model.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"person_id": personID,
		"records":   recs,
	})
}

// HandleGetSummary handles GET /api/v1/attendance/summary requests.
func (h *AttendanceHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_summary"

	day := r.URL.Query().Get("date")
	if day == "" {
		day = model.DayKey(time.Now())
	} else if _, err := time.Parse("2006-01-02", day); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("invalid date; must be YYYY-MM-DD")))
		return
	}

	summary, err := h.deps.Summary(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// dayRange resolves the query's day window: date pins a single day, from/to
// bound a range, and no parameter means today.
func dayRange(r *http.Request) (fromDay, toDay string, err error) {
	q := r.URL.Query()

	if date := q.Get("date"); date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return "", "", errors.New("invalid date; must be YYYY-MM-DD")
		}
		return date, date, nil
	}

	fromDay, toDay = q.Get("from"), q.Get("to")
	if fromDay == "" && toDay == "" {
		today := model.DayKey(time.Now())
		return today, today, nil
	}
	for _, d := range []string{fromDay, toDay} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return "", "", errors.New("invalid from/to; must be YYYY-MM-DD")
		}
	}
	return fromDay, toDay, nil
}
