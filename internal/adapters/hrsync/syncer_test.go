package hrsync_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/gatewatch/internal/adapters/hrsync"
	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

type fakePusher struct {
	mu     sync.Mutex
	pushes int
	err    error
}

func (p *fakePusher) Push(_ context.Context, _ model.AttendanceRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes++
	return p.err
}

func (p *fakePusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushes
}

type fakeSource struct {
	mu      sync.Mutex
	records map[string]model.AttendanceRecord
	marks   map[string]model.SyncStatus
}

func newFakeSource(recs ...model.AttendanceRecord) *fakeSource {
	s := &fakeSource{
		records: make(map[string]model.AttendanceRecord),
		marks:   make(map[string]model.SyncStatus),
	}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeSource) ByID(_ context.Context, recordID string) (model.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return model.AttendanceRecord{}, errors.New("record not found")
	}
	return rec, nil
}

func (s *fakeSource) MarkSync(_ context.Context, recordID string, status model.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[recordID] = status
	return nil
}

func (s *fakeSource) markOf(recordID string) (model.SyncStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.marks[recordID]
	return st, ok
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func record(id, personID string) model.AttendanceRecord {
	return model.AttendanceRecord{
		ID:         id,
		PersonID:   personID,
		Day:        "2026-08-27",
		Status:     model.StatusPresent,
		SyncStatus: model.SyncUnsynced,
	}
}

func fastOpts(extra ...hrsync.Option) []hrsync.Option {
	opts := []hrsync.Option{
		hrsync.WithPollInterval(5 * time.Millisecond),
		hrsync.WithInitialDelay(time.Millisecond),
		hrsync.WithMaxDelay(5 * time.Millisecond),
	}
	return append(opts, extra...)
}

func TestSyncer(t *testing.T) {
	ctx := context.Background()

	Convey("Given a syncer with a healthy endpoint", t, func() {
		pusher := &fakePusher{}
		source := newFakeSource(record("rec-1", "alice"))
		s := hrsync.NewSyncer(pusher, source, fastOpts()...)
		s.Start(ctx)
		defer s.Stop()

		Convey("When a record is submitted", func() {
			s.Submit("rec-1", "alice")

			Convey("Then it is pushed once, marked synced and removed", func() {
				waitFor(t, func() bool { return s.Backlog() == 0 })

				So(pusher.count(), ShouldEqual, 1)
				st, ok := source.markOf("rec-1")
				So(ok, ShouldBeTrue)
				So(st, ShouldEqual, model.SyncSynced)
				So(s.DeadLetter(), ShouldBeEmpty)
			})
		})

		Convey("When the same record is submitted twice", func() {
			s.Submit("rec-1", "alice")
			s.Submit("rec-1", "alice")

			Convey("Then only one job exists", func() {
				waitFor(t, func() bool { return s.Backlog() == 0 })
				So(pusher.count(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given an endpoint that rejects the payload", t, func() {
		pusher := &fakePusher{err: hrsync.Permanent(errors.New("unknown person"))}
		source := newFakeSource(record("rec-1", "alice"))
		s := hrsync.NewSyncer(pusher, source, fastOpts()...)
		s.Start(ctx)
		defer s.Stop()

		Convey("When the record is submitted", func() {
			s.Submit("rec-1", "alice")

			Convey("Then it dead-letters without retrying", func() {
				waitFor(t, func() bool { return len(s.DeadLetter()) == 1 })

				So(pusher.count(), ShouldEqual, 1)
				So(s.Backlog(), ShouldEqual, 0)

				dead := s.DeadLetter()
				So(dead[0].RecordID, ShouldEqual, "rec-1")
				So(dead[0].AttemptCount, ShouldEqual, 1)
				So(dead[0].LastError, ShouldContainSubstring, "unknown person")

				st, _ := source.markOf("rec-1")
				So(st, ShouldEqual, model.SyncFailed)
			})
		})
	})

	Convey("Given an endpoint that keeps timing out", t, func() {
		pusher := &fakePusher{err: errors.New("gateway timeout")}
		source := newFakeSource(record("rec-1", "alice"))
		s := hrsync.NewSyncer(pusher, source, fastOpts(hrsync.WithMaxAttempts(3))...)
		s.Start(ctx)
		defer s.Stop()

		Convey("When the record is submitted", func() {
			s.Submit("rec-1", "alice")

			Convey("Then it retries up to the attempt limit and dead-letters", func() {
				waitFor(t, func() bool { return len(s.DeadLetter()) == 1 })

				So(pusher.count(), ShouldEqual, 3)
				So(s.DeadLetter()[0].AttemptCount, ShouldEqual, 3)
				So(s.Backlog(), ShouldEqual, 0)

				st, _ := source.markOf("rec-1")
				So(st, ShouldEqual, model.SyncFailed)
			})
		})
	})

	Convey("Given a job whose record no longer exists", t, func() {
		pusher := &fakePusher{}
		source := newFakeSource()
		s := hrsync.NewSyncer(pusher, source, fastOpts()...)
		s.Start(ctx)
		defer s.Stop()

		Convey("When the orphaned job is submitted", func() {
			s.Submit("gone", "alice")

			Convey("Then it is dropped without a push", func() {
				waitFor(t, func() bool { return s.Backlog() == 0 })
				So(pusher.count(), ShouldEqual, 0)
				So(s.DeadLetter(), ShouldBeEmpty)
			})
		})
	})
}
