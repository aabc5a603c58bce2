package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/mapcheck/internal/adapters/mq/queue"
	"github.com/okian/mapcheck/internal/adapters/repository"
	worker "github.com/okian/mapcheck/internal/adapters/mq/worker"
	"github.com/okian/mapcheck/internal/domain/diagnostic"
	"github.com/okian/mapcheck/internal/domain/errorsummary"
	model "github.com/okian/mapcheck/internal/domain/model"
	"github.com/okian/mapcheck/internal/domain/proguard"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.CheckJob
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.CheckJob, 100)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.CheckJob { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(id string, rev int64) {
	mq.jobs <- queue.CheckJob{Event: model.Event{ID: id}, Revision: rev, Scope: proguard.Scope{OrgSlug: "acme", ProjectSlug: "android"}}
}

type mockDiagnoser struct {
	mu     sync.Mutex
	seen   []string
	panics map[string]bool
}

func (m *mockDiagnoser) Diagnose(ctx context.Context, scope proguard.Scope, ev *model.Event) ([]diagnostic.Diagnostic, errorsummary.Banner) {
	m.mu.Lock()
	m.seen = append(m.seen, ev.ID)
	boom := m.panics[ev.ID]
	m.mu.Unlock()
	if boom {
		panic("boom")
	}
	diags := []diagnostic.Diagnostic{diagnostic.MissingMapping{UUID: ev.ID}}
	return diags, errorsummary.BuildBanner(ev, diags)
}

type mockResults struct {
	mu      sync.Mutex
	results map[string]repository.Result
	err     error
	puts    int
}

func newMockResults() *mockResults {
	return &mockResults{results: make(map[string]repository.Result)}
}

func (m *mockResults) Put(ctx context.Context, r repository.Result) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.err != nil {
		return false, m.err
	}
	m.results[r.EventID] = r
	return true, nil
}

func (m *mockResults) get(id string) (repository.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[id]
	return r, ok
}

func (m *mockResults) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

type mockReleaser struct {
	mu       sync.Mutex
	released []string
}

func (m *mockReleaser) Done(ctx context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, id)
}

func (m *mockReleaser) list() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.released...)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker with mocks", t, func() {
		q := newMockQueue()
		d := &mockDiagnoser{panics: map[string]bool{}}
		results := newMockResults()
		releaser := &mockReleaser{}
		w := worker.NewInMemoryWorker(q, d, results, worker.WithName("test"), worker.WithReleaser(releaser))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job is processed", func() {
			q.add("evt-1", 3)
			convey.So(waitFor(func() bool { return results.count() == 1 }), convey.ShouldBeTrue)

			convey.Convey("Then the result is stored and the slot released", func() {
				r, ok := results.get("evt-1")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(r.Status, convey.ShouldEqual, repository.StatusDone)
				convey.So(r.Revision, convey.ShouldEqual, 3)
				convey.So(r.Diagnostics[0].Type, convey.ShouldEqual, "proguard_missing_mapping")
				convey.So(r.Banner.HasErrors, convey.ShouldBeTrue)
				convey.So(r.Owner, convey.ShouldEqual, "acme")
				convey.So(r.Project, convey.ShouldEqual, "android")
				convey.So(waitFor(func() bool { return len(releaser.list()) == 1 }), convey.ShouldBeTrue)
				convey.So(releaser.list()[0], convey.ShouldEqual, repository.Key("acme", "android", "evt-1"))
			})
		})

		convey.Convey("When diagnosis panics", func() {
			d.mu.Lock()
			d.panics["bad"] = true
			d.mu.Unlock()
			q.add("bad", 1)
			q.add("good", 1)
			convey.So(waitFor(func() bool { return results.count() == 2 }), convey.ShouldBeTrue)

			convey.Convey("Then a failed result is stored and the worker keeps going", func() {
				r, _ := results.get("bad")
				convey.So(r.Status, convey.ShouldEqual, repository.StatusFailed)
				convey.So(r.Error, convey.ShouldContainSubstring, "boom")
				convey.So(r.Diagnostics, convey.ShouldBeEmpty)
				good, _ := results.get("good")
				convey.So(good.Status, convey.ShouldEqual, repository.StatusDone)
			})
		})

		convey.Convey("When storing fails", func() {
			results.mu.Lock()
			results.err = errors.New("disk full")
			results.mu.Unlock()
			q.add("evt-2", 1)

			convey.Convey("Then the slot is still released", func() {
				convey.So(waitFor(func() bool { return len(releaser.list()) == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then it stops gracefully", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		q := newMockQueue()
		d := &mockDiagnoser{panics: map[string]bool{}}
		results := newMockResults()

		convey.Convey("When created with a default count", func() {
			p := worker.NewPool(0, q, d, results)

			convey.Convey("Then it sizes itself from the CPU count", func() {
				convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When processing many jobs", func() {
			p := worker.NewPool(4, q, d, results)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			p.Start(ctx)
			p.Start(ctx)

			for i := 0; i < 50; i++ {
				q.add(fmt.Sprintf("evt-%d", i), 1)
			}

			convey.Convey("Then every job is handled", func() {
				convey.So(waitFor(func() bool { return p.Processed() == 50 }), convey.ShouldBeTrue)
				convey.So(results.count(), convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When shutting down", func() {
			p := worker.NewPool(2, q, d, results)
			p.Start(context.Background())
			q.add("last", 1)

			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			err := p.Shutdown(sctx)

			convey.Convey("Then queued jobs drain before the pool stops", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := results.get("last")
				convey.So(ok, convey.ShouldBeTrue)
			})
		})
	})
}
