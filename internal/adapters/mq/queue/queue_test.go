package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/okian/gatewatch/internal/adapters/mq/queue"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bounded in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(3), queue.WithBufferSize(3))

		Convey("When detections are enqueued", func() {
			ok := q.Enqueue(ctx, queue.Detection{ID: "d1", CameraID: "cam-entrance"})

			Convey("Then the enqueue succeeds and the length grows", func() {
				So(ok, ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 1)
			})

			Convey("And a consumer receives them in order", func() {
				So(q.Enqueue(ctx, queue.Detection{ID: "d2"}), ShouldBeTrue)

				out := q.Dequeue(ctx)
				first := <-out
				second := <-out
				So(first.ID, ShouldEqual, "d1")
				So(second.ID, ShouldEqual, "d2")
			})
		})

		Convey("When the queue is at capacity", func() {
			for i := 0; i < 3; i++ {
				So(q.Enqueue(ctx, queue.Detection{ID: fmt.Sprintf("d%d", i)}), ShouldBeTrue)
			}

			Convey("Then further enqueues are rejected without blocking", func() {
				So(q.Enqueue(ctx, queue.Detection{ID: "overflow"}), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 3)
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, queue.Detection{ID: "d1"}), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)

			Convey("Then it reports closed and rejects new work", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, queue.Detection{ID: "d2"}), ShouldBeFalse)
			})

			Convey("And the dequeue channel drains and closes", func() {
				out := q.Dequeue(ctx)
				d, open := <-out
				So(open, ShouldBeTrue)
				So(d.ID, ShouldEqual, "d1")

				select {
				case _, open := <-out:
					So(open, ShouldBeFalse)
				case <-time.After(time.Second):
					t.Fatal("dequeue channel did not close")
				}
			})

			Convey("And closing again is a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}
