package cache_test

import (
	"context"
	"testing"
	"time"

	cache "github.com/okian/gatewatch/internal/adapters/cache"
	"github.com/okian/gatewatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func det(id, camera string) model.Detection {
	return model.Detection{ID: id, CameraID: camera, CapturedAt: time.Now().UTC()}
}

func TestLiveCache(t *testing.T) {
	Convey("Given a live cache with short TTLs", t, func() {
		c := cache.NewLiveCache(
			cache.WithDetectionTTL(50*time.Millisecond),
			cache.WithStatusTTL(50*time.Millisecond),
			cache.WithSweepInterval(10*time.Millisecond),
		)
		defer c.Close()
		ctx := context.Background()

		Convey("When recent detections are stored", func() {
			c.PutDetection(ctx, det("d1", "cam-entrance"), "alice", 0.9)
			c.PutDetection(ctx, det("d2", "cam-lobby"), "bob", 0.5)

			Convey("Then all unexpired detections are visible", func() {
				So(len(c.Recent(ctx, "", 0)), ShouldEqual, 2)
			})

			Convey("And a newer detection on the same camera replaces the old one", func() {
				c.PutDetection(ctx, det("d3", "cam-entrance"), "carol", 0.7)
				recent := c.Recent(ctx, "cam-entrance", 0)
				So(len(recent), ShouldEqual, 1)
				So(recent[0]["detection_id"], ShouldEqual, "d3")
				So(recent[0]["person_id"], ShouldEqual, "carol")
			})

			Convey("And the camera filter narrows the result", func() {
				recent := c.Recent(ctx, "cam-entrance", 0)
				So(len(recent), ShouldEqual, 1)
				So(recent[0]["detection_id"], ShouldEqual, "d1")
			})

			Convey("And the confidence filter narrows the result", func() {
				recent := c.Recent(ctx, "", 0.8)
				So(len(recent), ShouldEqual, 1)
				So(recent[0]["person_id"], ShouldEqual, "alice")
			})

			Convey("And entries vanish after the TTL", func() {
				time.Sleep(80 * time.Millisecond)
				So(c.Recent(ctx, "", 0), ShouldBeEmpty)
			})
		})

		Convey("When a person status snapshot is cached", func() {
			now := time.Now().UTC()
			c.PutPersonStatus(ctx, model.PersonStatus{
				PersonID:    "alice",
				CheckedIn:   true,
				CheckInTime: &now,
				Status:      "checked_in",
			})

			Convey("Then it is served while fresh", func() {
				status, ok := c.PersonStatus(ctx, "alice")
				So(ok, ShouldBeTrue)
				So(status.CheckedIn, ShouldBeTrue)
			})

			Convey("And a miss is not an error", func() {
				_, ok := c.PersonStatus(ctx, "bob")
				So(ok, ShouldBeFalse)
			})

			Convey("And invalidation drops it immediately", func() {
				c.InvalidatePersonStatus("alice")
				_, ok := c.PersonStatus(ctx, "alice")
				So(ok, ShouldBeFalse)
			})

			Convey("And it expires after the TTL", func() {
				time.Sleep(80 * time.Millisecond)
				_, ok := c.PersonStatus(ctx, "alice")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When Close is called twice", func() {
			Convey("Then it does not panic", func() {
				So(func() {
					c.Close()
					c.Close()
				}, ShouldNotPanic)
			})
		})
	})
}
