package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	repository "github.com/okian/gatewatch/internal/adapters/repository"
	"github.com/okian/gatewatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func record(id, personID, day string) model.AttendanceRecord {
	return model.AttendanceRecord{
		ID:         id,
		PersonID:   personID,
		Day:        day,
		Status:     model.StatusPending,
		SyncStatus: model.SyncUnsynced,
	}
}

func TestMemAttendanceStore(t *testing.T) {
	Convey("Given an attendance store", t, func() {
		store := repository.NewMemAttendanceStore()
		ctx := context.Background()

		Convey("When putting and getting a record", func() {
			So(store.Put(ctx, record("rec-1", "alice", "2026-08-27")), ShouldBeNil)

			rec, err := store.Get(ctx, "alice", "2026-08-27")

			Convey("Then the record round-trips with a fresh UpdatedAt", func() {
				So(err, ShouldBeNil)
				So(rec.ID, ShouldEqual, "rec-1")
				So(rec.UpdatedAt, ShouldHappenWithin, time.Minute, time.Now())
			})
		})

		Convey("When getting a missing record", func() {
			_, err := store.Get(ctx, "alice", "2026-08-27")

			Convey("Then it reports not found", func() {
				So(errors.Is(err, repository.ErrRecordNotFound), ShouldBeTrue)
			})
		})

		Convey("When putting a record without person or day", func() {
			err := store.Put(ctx, model.AttendanceRecord{ID: "rec-1"})

			Convey("Then it is rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When overwriting the same (person, day)", func() {
			So(store.Put(ctx, record("rec-1", "alice", "2026-08-27")), ShouldBeNil)

			updated := record("rec-1", "alice", "2026-08-27")
			updated.Status = model.StatusPresent
			So(store.Put(ctx, updated), ShouldBeNil)

			Convey("Then exactly one record exists per person per day", func() {
				So(store.Count(ctx), ShouldEqual, 1)
				rec, err := store.Get(ctx, "alice", "2026-08-27")
				So(err, ShouldBeNil)
				So(rec.Status, ShouldEqual, model.StatusPresent)
			})
		})

		Convey("When looking up by record id", func() {
			So(store.Put(ctx, record("rec-1", "alice", "2026-08-27")), ShouldBeNil)

			rec, err := store.ByID(ctx, "rec-1")

			Convey("Then the record is found", func() {
				So(err, ShouldBeNil)
				So(rec.PersonID, ShouldEqual, "alice")
			})

			Convey("And an unknown id reports not found", func() {
				_, err := store.ByID(ctx, "rec-404")
				So(errors.Is(err, repository.ErrRecordNotFound), ShouldBeTrue)
			})
		})

		Convey("When querying a day", func() {
			So(store.Put(ctx, record("rec-1", "bob", "2026-08-27")), ShouldBeNil)
			So(store.Put(ctx, record("rec-2", "alice", "2026-08-27")), ShouldBeNil)
			So(store.Put(ctx, record("rec-3", "alice", "2026-08-26")), ShouldBeNil)

			recs, err := store.ByDay(ctx, "2026-08-27")

			Convey("Then only that day's records return, ordered by person", func() {
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 2)
				So(recs[0].PersonID, ShouldEqual, "alice")
				So(recs[1].PersonID, ShouldEqual, "bob")
			})
		})

		Convey("When querying a person's range", func() {
			for d := 20; d <= 27; d++ {
				day := fmt.Sprintf("2026-08-%02d", d)
				So(store.Put(ctx, record("rec-"+day, "alice", day)), ShouldBeNil)
			}

			recs, err := store.ByPerson(ctx, "alice", "2026-08-22", "2026-08-24")

			Convey("Then the day window bounds the result, oldest first", func() {
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 3)
				So(recs[0].Day, ShouldEqual, "2026-08-22")
				So(recs[2].Day, ShouldEqual, "2026-08-24")
			})
		})

		Convey("When marking sync status", func() {
			So(store.Put(ctx, record("rec-1", "alice", "2026-08-27")), ShouldBeNil)

			err := store.MarkSync(ctx, "rec-1", model.SyncSynced)

			Convey("Then the record reflects the new status", func() {
				So(err, ShouldBeNil)
				rec, err := store.Get(ctx, "alice", "2026-08-27")
				So(err, ShouldBeNil)
				So(rec.SyncStatus, ShouldEqual, model.SyncSynced)
			})

			Convey("And an unknown record id fails", func() {
				So(errors.Is(store.MarkSync(ctx, "rec-404", model.SyncSynced), repository.ErrRecordNotFound), ShouldBeTrue)
			})
		})

		Convey("When counting open records", func() {
			open := record("rec-1", "alice", "2026-08-27")
			open.CheckIn = &model.Mark{Time: time.Now()}
			closed := record("rec-2", "bob", "2026-08-27")
			closed.CheckIn = &model.Mark{Time: time.Now()}
			closed.CheckOut = &model.Mark{Time: time.Now()}
			So(store.Put(ctx, open), ShouldBeNil)
			So(store.Put(ctx, closed), ShouldBeNil)
			So(store.Put(ctx, record("rec-3", "carol", "2026-08-27")), ShouldBeNil)

			Convey("Then only checked-in-not-out records count", func() {
				So(store.OpenCount(ctx), ShouldEqual, 1)
			})
		})

		Convey("When listing unsynced records", func() {
			synced := record("rec-1", "alice", "2026-08-27")
			synced.SyncStatus = model.SyncSynced
			So(store.Put(ctx, synced), ShouldBeNil)
			So(store.Put(ctx, record("rec-2", "bob", "2026-08-27")), ShouldBeNil)

			Convey("Then only pending ones return", func() {
				recs := store.Unsynced(ctx)
				So(len(recs), ShouldEqual, 1)
				So(recs[0].PersonID, ShouldEqual, "bob")
			})
		})
	})
}
