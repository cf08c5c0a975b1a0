package hrsync_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/gatewatch/internal/adapters/hrsync"
	"github.com/okian/gatewatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestHTTPPusher(t *testing.T) {
	ctx := context.Background()

	checkIn := time.Date(2026, 8, 27, 8, 30, 0, 0, time.UTC)
	checkOut := time.Date(2026, 8, 27, 17, 30, 0, 0, time.UTC)
	rec := model.AttendanceRecord{
		ID:       "rec-1",
		PersonID: "alice",
		Day:      "2026-08-27",
		CheckIn:  &model.Mark{Time: checkIn},
		CheckOut: &model.Mark{Time: checkOut},
		Status:   model.StatusPresent,
	}

	Convey("Given an HR endpoint that accepts pushes", t, func() {
		var got map[string]any
		var headers http.Header
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers = r.Header.Clone()
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		resolve := func(personID string) string {
			if personID == "alice" {
				return "EMP-001"
			}
			return ""
		}
		pusher := hrsync.NewHTTPPusher(ts.URL, "secret", resolve)

		Convey("When a completed record is pushed", func() {
			err := pusher.Push(ctx, rec)

			Convey("Then the downstream schema is sent", func() {
				So(err, ShouldBeNil)
				So(got["person_external_id"], ShouldEqual, "EMP-001")
				So(got["date"], ShouldEqual, "2026-08-27")
				So(got["check_in_time"], ShouldEqual, "2026-08-27T08:30:00Z")
				So(got["check_out_time"], ShouldEqual, "2026-08-27T17:30:00Z")
				So(got["status"], ShouldEqual, "present")
			})

			Convey("And the request is authenticated and idempotent", func() {
				So(err, ShouldBeNil)
				So(headers.Get("Authorization"), ShouldEqual, "Bearer secret")
				So(headers.Get("Idempotency-Key"), ShouldEqual, "rec-1")
				So(headers.Get("Content-Type"), ShouldEqual, "application/json")
			})
		})

		Convey("When a person has no external mapping", func() {
			other := rec
			other.PersonID = "bob"
			err := pusher.Push(ctx, other)

			Convey("Then the person id passes through unchanged", func() {
				So(err, ShouldBeNil)
				So(got["person_external_id"], ShouldEqual, "bob")
			})
		})

		Convey("When a record has no check-out yet", func() {
			open := rec
			open.CheckOut = nil
			err := pusher.Push(ctx, open)

			Convey("Then the check-out field is omitted", func() {
				So(err, ShouldBeNil)
				So(got, ShouldNotContainKey, "check_out_time")
			})
		})
	})

	Convey("Given an HR endpoint that rejects the payload", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer ts.Close()
		pusher := hrsync.NewHTTPPusher(ts.URL, "", nil)

		Convey("When the record is pushed", func() {
			err := pusher.Push(ctx, rec)

			Convey("Then the failure is permanent", func() {
				So(err, ShouldNotBeNil)
				var perm *hrsync.PermanentError
				So(errors.As(err, &perm), ShouldBeTrue)
			})
		})
	})

	Convey("Given an HR endpoint that is falling over", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer ts.Close()
		pusher := hrsync.NewHTTPPusher(ts.URL, "", nil)

		Convey("When the record is pushed", func() {
			err := pusher.Push(ctx, rec)

			Convey("Then the failure is retryable", func() {
				So(err, ShouldNotBeNil)
				var perm *hrsync.PermanentError
				So(errors.As(err, &perm), ShouldBeFalse)
			})
		})
	})
}
