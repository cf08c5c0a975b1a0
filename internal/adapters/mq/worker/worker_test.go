package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/gatewatch/internal/adapters/mq/queue"
	"github.com/okian/gatewatch/internal/adapters/mq/worker"
	"github.com/okian/gatewatch/internal/domain/attendance"
	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

type fakeMatcher struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (m *fakeMatcher) Match(_ context.Context, det model.Detection) (model.MatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, det.ID)
	if err, ok := m.fail[det.ID]; ok {
		return model.MatchResult{}, err
	}
	return model.MatchResult{DetectionID: det.ID, PersonID: "alice", Confidence: 0.9}, nil
}

func (m *fakeMatcher) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type fakeApplier struct {
	mu      sync.Mutex
	applied []string
}

func (a *fakeApplier) Apply(_ context.Context, det model.Detection, _ model.MatchResult) (attendance.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, det.ID)
	return attendance.Result{Outcome: attendance.OutcomeCheckIn}, nil
}

func (a *fakeApplier) seen() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.applied...)
}

type fakeRecorder struct {
	mu      sync.Mutex
	persons []string
}

func (r *fakeRecorder) PutDetection(_ context.Context, _ model.Detection, personID string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persons = append(r.persons, personID)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *fakePublisher) Publish(_ context.Context, ev model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
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

func TestWorkerProcessing(t *testing.T) {
	Convey("Given a worker consuming from a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16), queue.WithBufferSize(16))
		matcher := &fakeMatcher{fail: map[string]error{}}
		applier := &fakeApplier{}
		recorder := &fakeRecorder{}
		pub := &fakePublisher{}

		w := worker.NewInMemoryWorker(q, matcher, applier,
			worker.WithName("worker-test"),
			worker.WithRecorder(recorder),
			worker.WithPublisher(pub),
		)
		go w.Run(ctx)

		Convey("When a detection is enqueued", func() {
			So(q.Enqueue(ctx, worker.Detection{ID: "d1", CameraID: "cam-entrance", CapturedAt: time.Now().UTC()}), ShouldBeTrue)

			Convey("Then it is matched, recorded, published and applied", func() {
				waitFor(t, func() bool { return len(applier.seen()) == 1 })

				So(matcher.seen(), ShouldResemble, []string{"d1"})
				So(applier.seen(), ShouldResemble, []string{"d1"})

				recorder.mu.Lock()
				So(recorder.persons, ShouldResemble, []string{"alice"})
				recorder.mu.Unlock()

				pub.mu.Lock()
				So(len(pub.events), ShouldEqual, 1)
				So(pub.events[0].Type, ShouldEqual, model.EventDetection)
				So(pub.events[0].PersonID, ShouldEqual, "alice")
				pub.mu.Unlock()
			})
		})

		Convey("When one detection fails to match", func() {
			matcher.mu.Lock()
			matcher.fail["bad"] = errors.New("index unavailable")
			matcher.mu.Unlock()

			So(q.Enqueue(ctx, worker.Detection{ID: "bad"}), ShouldBeTrue)
			So(q.Enqueue(ctx, worker.Detection{ID: "good"}), ShouldBeTrue)

			Convey("Then the worker survives and processes the next one", func() {
				waitFor(t, func() bool { return len(applier.seen()) == 1 })

				So(matcher.seen(), ShouldResemble, []string{"bad", "good"})
				So(applier.seen(), ShouldResemble, []string{"good"})
			})
		})

		Convey("When the worker is shut down", func() {
			Convey("Then Shutdown returns promptly", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()
				So(w.Shutdown(shutdownCtx), ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of workers sharing a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(64), queue.WithBufferSize(64))
		matcher := &fakeMatcher{fail: map[string]error{}}
		applier := &fakeApplier{}

		pool := worker.NewPool(3, q, matcher, applier)
		pool.Start(ctx)

		Convey("When a batch of detections is enqueued", func() {
			for _, id := range []string{"d1", "d2", "d3", "d4", "d5"} {
				So(q.Enqueue(ctx, worker.Detection{ID: id}), ShouldBeTrue)
			}

			Convey("Then every detection is processed exactly once", func() {
				waitFor(t, func() bool { return len(applier.seen()) == 5 })

				seen := map[string]int{}
				for _, id := range applier.seen() {
					seen[id]++
				}
				So(len(seen), ShouldEqual, 5)
				for _, n := range seen {
					So(n, ShouldEqual, 1)
				}
			})
		})

		Convey("When the pool shuts down", func() {
			Convey("Then the queue is closed and workers drain", func() {
				So(pool.Shutdown(ctx), ShouldBeNil)
				So(q.IsClosed(), ShouldBeTrue)
			})
		})
	})
}
