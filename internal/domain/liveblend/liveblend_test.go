package liveblend_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/boxscore/internal/domain/liveblend"
	"github.com/okian/boxscore/internal/domain/model"
	"github.com/okian/boxscore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeSchedule struct {
	mu      sync.Mutex
	events  []model.Event
	err     error
	calls   int
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSchedule) FetchFullSchedule(context.Context) ([]model.Event, error) {
	f.mu.Lock()
	f.calls++
	block, entered := f.block, f.entered
	events, err := f.events, f.err
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return events, err
}

func (f *fakeSchedule) set(events []model.Event, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events, f.err = events, err
}

func (f *fakeSchedule) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLive struct {
	mu     sync.Mutex
	events []model.Event
	err    error
	calls  int
}

func (f *fakeLive) FetchTodayScoreboard(context.Context) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.events, f.err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func ev(id int64, day time.Time, status model.Status, text string) model.Event {
	return model.Event{ID: id, Date: day, Status: status, StatusText: text}
}

func ids(events []model.Event) []int64 {
	out := make([]int64, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

// Wednesday 2025-01-15, noon UTC.
var (
	wed   = model.Day(2025, time.January, 15)
	sun   = model.Day(2025, time.January, 12)
	sat   = model.Day(2025, time.January, 18)
	noon  = wed.Add(12 * time.Hour)
	dayAt = func(d int) time.Time { return model.Day(2025, time.January, d) }
)

func schedule() []model.Event {
	return []model.Event{
		ev(5, dayAt(20), model.StatusScheduled, "7:00 pm ET"),
		ev(1, dayAt(11), model.StatusFinal, "Final"),
		ev(2, dayAt(12), model.StatusFinal, "Final"),
		ev(3, wed, model.StatusScheduled, "7:30 pm ET"),
		ev(4, wed, model.StatusScheduled, "10:00 pm ET"),
		ev(6, sat, model.StatusScheduled, "8:00 pm ET"),
		ev(7, dayAt(30), model.StatusScheduled, "8:00 pm ET"),
	}
}

func TestBlend(t *testing.T) {
	Convey("Given a cached schedule and a live feed on Wednesday", t, func() {
		ctx := context.Background()
		clk := &clock{now: noon}
		sched := &fakeSchedule{events: schedule()}
		live := &fakeLive{events: []model.Event{
			ev(3, wed, model.StatusInProgress, "Q2 4:00"),
			ev(99, wed, model.StatusInProgress, "Q1 1:00"),
		}}
		cache := liveblend.NewScheduleCache(sched, 30*time.Minute, liveblend.WithCacheClock(clk.Now))
		b := liveblend.New(cache, live, liveblend.WithClock(clk.Now))

		Convey("When today's games are requested", func() {
			games := b.GamesForDate(ctx, wed.Add(3*time.Hour))

			Convey("Then they come from the live feed only", func() {
				So(ids(games), ShouldResemble, []int64{3, 99})
				So(live.calls, ShouldEqual, 1)
				So(sched.count(), ShouldEqual, 0)
			})
		})

		Convey("When today's games are requested with a stale schedule", func() {
			_, _ = cache.Events(ctx)
			clk.Advance(2 * time.Hour)
			sched.set(nil, model.ErrUpstreamUnavailable)

			games := b.GamesForDate(ctx, wed)

			Convey("Then the live feed still answers", func() {
				So(ids(games), ShouldResemble, []int64{3, 99})
				So(sched.count(), ShouldEqual, 1)
			})
		})

		Convey("When a past date is requested", func() {
			games := b.GamesForDate(ctx, dayAt(11))

			Convey("Then the live feed is never called", func() {
				So(ids(games), ShouldResemble, []int64{1})
				So(live.calls, ShouldEqual, 0)
			})
		})

		Convey("When the live feed is down", func() {
			live.err = model.ErrUpstreamUnavailable
			games := b.TodaysGames(ctx)

			Convey("Then today's scheduled entries are served", func() {
				So(ids(games), ShouldResemble, []int64{3, 4})
			})
		})

		Convey("When a range including today is requested", func() {
			games := b.GamesForRange(ctx, dayAt(11), dayAt(20))

			Convey("Then today's entries are replaced by live ones and the rest sorted by date", func() {
				So(ids(games), ShouldResemble, []int64{1, 2, 3, 4, 6, 5})
				So(games[2].Status, ShouldEqual, model.StatusInProgress)
				So(games[2].StatusText, ShouldEqual, "Q2 4:00")
				So(games[3].Status, ShouldEqual, model.StatusScheduled)
				So(live.calls, ShouldEqual, 1)
			})
		})

		Convey("When a range excluding today is requested", func() {
			games := b.GamesForRange(ctx, dayAt(20), dayAt(31))
			So(ids(games), ShouldResemble, []int64{5, 7})
			So(live.calls, ShouldEqual, 0)
		})

		Convey("When an inverted range is requested", func() {
			So(b.GamesForRange(ctx, dayAt(20), dayAt(11)), ShouldBeEmpty)
		})

		Convey("When the week is requested", func() {
			games := b.GamesForWeek(ctx, wed)

			Convey("Then it spans Sunday through Saturday", func() {
				So(ids(games), ShouldResemble, []int64{2, 3, 4, 6})
			})
		})

		Convey("When upcoming games are requested", func() {
			games := b.UpcomingGames(ctx)

			Convey("Then completed games are excluded and the horizon is fourteen days", func() {
				So(ids(games), ShouldResemble, []int64{3, 4, 6, 5})
			})
		})

		Convey("When a schedule refresh times out with a prior cache present", func() {
			prior := b.GamesForWeek(ctx, dayAt(19))
			So(ids(prior), ShouldResemble, []int64{5})
			clk.Advance(45 * time.Minute)
			sched.set(nil, fmt.Errorf("%w: schedule: context deadline exceeded", model.ErrUpstreamUnavailable))

			games := b.GamesForWeek(ctx, dayAt(19))

			Convey("Then the prior cached week is returned", func() {
				So(ids(games), ShouldResemble, []int64{5})
				So(sched.count(), ShouldEqual, 2)
				So(cache.RefreshedAt(), ShouldEqual, noon)
			})
		})

		Convey("When the schedule was never loaded and upstream is down", func() {
			sched.set(nil, model.ErrUpstreamUnavailable)
			So(b.GamesForDate(ctx, dayAt(11)), ShouldBeEmpty)

			_, err := cache.Events(ctx)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestScheduleCache(t *testing.T) {
	Convey("Given a loaded schedule cache", t, func() {
		ctx := context.Background()
		clk := &clock{now: noon}
		sched := &fakeSchedule{events: schedule()}
		cache := liveblend.NewScheduleCache(sched, 30*time.Minute, liveblend.WithCacheClock(clk.Now))
		_, err := cache.Events(ctx)
		So(err, ShouldBeNil)

		Convey("When read within the TTL", func() {
			_, _ = cache.Events(ctx)
			So(sched.count(), ShouldEqual, 1)
			So(cache.Len(), ShouldEqual, 7)
		})

		Convey("When read after the TTL", func() {
			clk.Advance(31 * time.Minute)
			sched.set(schedule()[:2], nil)
			events, err := cache.Events(ctx)

			Convey("Then it is replaced wholesale", func() {
				So(err, ShouldBeNil)
				So(len(events), ShouldEqual, 2)
				So(cache.RefreshedAt(), ShouldEqual, noon.Add(31*time.Minute))
			})
		})

		Convey("When a refresh is in flight", func() {
			clk.Advance(31 * time.Minute)
			sched.mu.Lock()
			sched.block = make(chan struct{})
			sched.entered = make(chan struct{}, 1)
			sched.mu.Unlock()

			done := make(chan struct{})
			go func() {
				_, _ = cache.Events(ctx)
				close(done)
			}()
			<-sched.entered

			events, err := cache.Events(ctx)

			Convey("Then concurrent readers get the stale contents immediately", func() {
				So(err, ShouldBeNil)
				So(len(events), ShouldEqual, 7)
				close(sched.block)
				<-done
				So(sched.count(), ShouldEqual, 2)
			})
		})
	})
}

func TestScheduleCache_FirstLoad(t *testing.T) {
	Convey("Given an empty schedule cache and an upstream that is down", t, func() {
		ctx := context.Background()
		sched := &fakeSchedule{
			err:     model.ErrUpstreamUnavailable,
			block:   make(chan struct{}),
			entered: make(chan struct{}, 1),
		}
		cache := liveblend.NewScheduleCache(sched, 30*time.Minute)

		Convey("When several callers ask for the schedule at once", func() {
			const callers = 5
			var ready, done sync.WaitGroup
			errs := make([]error, callers)
			for i := 0; i < callers; i++ {
				ready.Add(1)
				done.Add(1)
				go func(i int) {
					defer done.Done()
					ready.Done()
					_, errs[i] = cache.Events(ctx)
				}(i)
			}
			ready.Wait()
			<-sched.entered
			time.Sleep(50 * time.Millisecond)
			close(sched.block)
			done.Wait()

			Convey("Then they share one fetch and all see its failure", func() {
				So(sched.count(), ShouldEqual, 1)
				for _, err := range errs {
					So(errors.Is(err, model.ErrUpstreamUnavailable), ShouldBeTrue)
				}
			})
		})
	})
}

func TestWeekOf(t *testing.T) {
	Convey("Given dates across a week", t, func() {
		start, end := liveblend.WeekOf(wed)
		So(start, ShouldEqual, sun)
		So(end, ShouldEqual, sat)

		start, _ = liveblend.WeekOf(sun)
		So(start, ShouldEqual, sun)

		start, end = liveblend.WeekOf(sat.Add(23 * time.Hour))
		So(start, ShouldEqual, sun)
		So(end, ShouldEqual, sat)
	})
}
