package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dedupe "github.com/okian/mapcheck/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryGuard(t *testing.T) {
	Convey("Given a new in-memory guard", t, func() {
		ctx := context.Background()

		Convey("When created with default options", func() {
			g := dedupe.NewInMemoryGuard()

			Convey("Then it is empty", func() {
				So(g.Size(), ShouldEqual, 0)
				So(g.Oldest(), ShouldEqual, 0)
			})
		})

		Convey("When beginning checks", func() {
			g := dedupe.NewInMemoryGuard()

			Convey("And the event is new", func() {
				err := g.TryBegin(ctx, "event-1")

				Convey("Then it is accepted", func() {
					So(err, ShouldBeNil)
					So(g.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the event is already in flight", func() {
				So(g.TryBegin(ctx, "event-1"), ShouldBeNil)
				err := g.TryBegin(ctx, "event-1")

				Convey("Then it is rejected as a duplicate", func() {
					So(err, ShouldEqual, dedupe.ErrInFlight)
					So(g.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the previous check finished", func() {
				So(g.TryBegin(ctx, "event-1"), ShouldBeNil)
				g.Done(ctx, "event-1")

				Convey("Then the event can be checked again", func() {
					So(g.Size(), ShouldEqual, 0)
					So(g.TryBegin(ctx, "event-1"), ShouldBeNil)
				})
			})

			Convey("And an unknown id is released", func() {
				g.Done(ctx, "nonexistent")

				Convey("Then nothing changes", func() {
					So(g.Size(), ShouldEqual, 0)
				})
			})
		})

		Convey("When bounded", func() {
			g := dedupe.NewInMemoryGuard(dedupe.WithMaxSize(2))
			So(g.TryBegin(ctx, "a"), ShouldBeNil)
			So(g.TryBegin(ctx, "b"), ShouldBeNil)

			Convey("Then new checks are refused until one finishes", func() {
				So(g.TryBegin(ctx, "c"), ShouldEqual, dedupe.ErrFull)
				g.Done(ctx, "a")
				So(g.TryBegin(ctx, "c"), ShouldBeNil)
			})
		})

		Convey("When unbounded", func() {
			g := dedupe.NewInMemoryGuard(dedupe.WithMaxSize(0))
			for i := 0; i < 1000; i++ {
				So(g.TryBegin(ctx, fmt.Sprintf("event-%d", i)), ShouldBeNil)
			}

			Convey("Then every check is tracked", func() {
				So(g.Size(), ShouldEqual, int64(1000))
			})
		})

		Convey("When checks have been running a while", func() {
			now := time.Unix(1000, 0)
			g := dedupe.NewInMemoryGuard(dedupe.WithClock(func() time.Time { return now }))
			So(g.TryBegin(ctx, "old"), ShouldBeNil)
			now = now.Add(5 * time.Second)
			So(g.TryBegin(ctx, "new"), ShouldBeNil)
			now = now.Add(time.Second)

			Convey("Then the oldest age is reported", func() {
				So(g.Oldest(), ShouldEqual, 6*time.Second)
			})
		})
	})
}

func TestGuardConcurrency(t *testing.T) {
	Convey("Given many goroutines racing on one event", t, func() {
		g := dedupe.NewInMemoryGuard()
		const workers = 50
		var wg sync.WaitGroup
		var accepted atomic.Int64

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if g.TryBegin(context.Background(), "same") == nil {
					accepted.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one wins", func() {
			So(accepted.Load(), ShouldEqual, 1)
			So(g.Size(), ShouldEqual, 1)
		})
	})
}
