package service_test

import (
	"context"
	"testing"
	"time"

	service "github.com/okian/gatewatch/internal/app"
	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func newService(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(64),
		service.WithSignatureDimension(4),
		service.WithCameras([]string{"cam-entrance", "cam-lobby"}),
	}
	return service.New(append(base, opts...)...)
}

func identity(personID, externalID string, v model.Vector) model.Identity {
	return model.Identity{
		PersonID:   personID,
		ExternalID: externalID,
		Samples:    []model.SignatureSample{{Vector: v, Primary: true, EnrolledAt: time.Now().UTC()}},
		EnrolledAt: time.Now().UTC(),
	}
}

// at returns today's date at the given UTC wall-clock time.
func at(hour, minute int) time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a configured service", t, func() {
		svc := newService()

		Convey("When it is started", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			Convey("Then it reports running stats", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["workerCount"], ShouldEqual, 2)
				So(stats["cameras"], ShouldEqual, 2)
				So(stats["queueLength"], ShouldEqual, 0)
			})

			Convey("And only configured cameras are known", func() {
				So(svc.KnownCamera("cam-entrance"), ShouldBeTrue)
				So(svc.KnownCamera("cam-lobby"), ShouldBeTrue)
				So(svc.KnownCamera("cam-garage"), ShouldBeFalse)
			})

			Convey("And starting again is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And stopping twice is safe", func() {
				svc.Stop()
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}

func TestServiceDedupe(t *testing.T) {
	Convey("Given a running service", t, func() {
		svc := newService()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a detection id is recorded twice", func() {
			first := svc.SeenAndRecord(ctx, "d1")
			second := svc.SeenAndRecord(ctx, "d1")

			Convey("Then only the second sighting is a duplicate", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(svc.Size(), ShouldEqual, 1)
			})

			Convey("And unrecording allows resubmission", func() {
				svc.Unrecord(ctx, "d1")
				So(svc.SeenAndRecord(ctx, "d1"), ShouldBeFalse)
			})
		})
	})
}

func TestServicePipeline(t *testing.T) {
	Convey("Given a running service with an enrolled identity", t, func() {
		svc := newService()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		vec := model.Vector{0.1, 0.4, 0.2, 0.8}
		So(svc.Enroll(ctx, identity("alice", "EMP-001", vec)), ShouldBeNil)

		today := model.DayKey(time.Now())

		Convey("When a morning detection flows through the pipeline", func() {
			capturedAt := at(8, 30)
			ok := svc.Enqueue(ctx, model.Detection{
				ID:         "d1",
				CameraID:   "cam-entrance",
				CapturedAt: capturedAt,
				Signature:  vec,
			})
			So(ok, ShouldBeTrue)

			Convey("Then an on-time check-in is recorded", func() {
				waitFor(t, func() bool {
					recs, err := svc.Records(ctx, "alice", today, today)
					return err == nil && len(recs) == 1 && recs[0].CheckIn != nil
				})

				recs, err := svc.Records(ctx, "alice", today, today)
				So(err, ShouldBeNil)
				So(recs[0].Status, ShouldEqual, model.StatusPresent)
				So(recs[0].CheckIn.Time.Equal(capturedAt), ShouldBeTrue)
				So(recs[0].CheckIn.CameraID, ShouldEqual, "cam-entrance")
			})

			Convey("And the person status reflects the check-in", func() {
				waitFor(t, func() bool {
					recs, err := svc.Records(ctx, "alice", today, today)
					return err == nil && len(recs) == 1
				})

				status := svc.PersonStatus(ctx, "alice")
				So(status.PersonID, ShouldEqual, "alice")
				So(status.CheckedIn, ShouldBeTrue)
				So(status.Status, ShouldEqual, "checked_in")
			})

			Convey("And the live view briefly shows the detection", func() {
				waitFor(t, func() bool { return len(svc.Recent(ctx, "cam-entrance", 0)) == 1 })

				recent := svc.Recent(ctx, "cam-entrance", 0)
				So(recent[0]["person_id"], ShouldEqual, "alice")
			})

			Convey("And the day summary counts the person present", func() {
				waitFor(t, func() bool {
					summary, err := svc.Summary(ctx, today)
					return err == nil && summary.Total == 1
				})

				summary, err := svc.Summary(ctx, today)
				So(err, ShouldBeNil)
				So(summary.Present, ShouldEqual, 1)
				So(summary.Late, ShouldEqual, 0)
			})
		})

		Convey("When an evening detection follows a morning one", func() {
			So(svc.Enqueue(ctx, model.Detection{
				ID: "d1", CameraID: "cam-entrance", CapturedAt: at(8, 30), Signature: vec,
			}), ShouldBeTrue)
			waitFor(t, func() bool {
				recs, err := svc.Records(ctx, "alice", today, today)
				return err == nil && len(recs) == 1 && recs[0].CheckIn != nil
			})

			So(svc.Enqueue(ctx, model.Detection{
				ID: "d2", CameraID: "cam-lobby", CapturedAt: at(17, 30), Signature: vec,
			}), ShouldBeTrue)

			Convey("Then the day closes with a full shift", func() {
				waitFor(t, func() bool {
					recs, err := svc.Records(ctx, "alice", today, today)
					return err == nil && len(recs) == 1 && recs[0].CheckOut != nil
				})

				recs, _ := svc.Records(ctx, "alice", today, today)
				So(recs[0].Status, ShouldEqual, model.StatusPresent)
				So(recs[0].DurationMinutes, ShouldEqual, 540)
			})
		})

		Convey("When an unknown face is detected", func() {
			So(svc.Enqueue(ctx, model.Detection{
				ID: "d9", CameraID: "cam-entrance", CapturedAt: at(8, 45),
				Signature: model.Vector{-0.9, 0.1, -0.5, 0.3},
			}), ShouldBeTrue)

			Convey("Then it reaches the live view unidentified and leaves no record", func() {
				waitFor(t, func() bool { return len(svc.Recent(ctx, "cam-entrance", 0)) == 1 })

				recent := svc.Recent(ctx, "cam-entrance", 0)
				So(recent[0]["person_id"], ShouldEqual, "")

				recs, err := svc.Records(ctx, "alice", today, today)
				So(err, ShouldBeNil)
				So(recs, ShouldBeEmpty)
			})
		})

		Convey("When no review is pending", func() {
			Convey("Then approving a made-up id fails", func() {
				So(svc.ListReviews(ctx), ShouldBeEmpty)
				_, err := svc.ApproveReview(ctx, "rev-missing", "check_in")
				So(err, ShouldNotBeNil)
			})
		})
	})
}
