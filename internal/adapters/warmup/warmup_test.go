package warmup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/boxscore/internal/adapters/warmup"
	"github.com/okian/boxscore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestLinearBackoff(t *testing.T) {
	Convey("Given a linear backoff of 1.5s", t, func() {
		b := warmup.LinearBackoff(1500 * time.Millisecond)
		So(b(1), ShouldEqual, 1500*time.Millisecond)
		So(b(2), ShouldEqual, 3*time.Second)
		So(b(5), ShouldEqual, 7500*time.Millisecond)
	})
}

func TestRun(t *testing.T) {
	Convey("Given a call that fails twice then succeeds", t, func() {
		calls := 0
		var delays []int
		fn := func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("not ready")
			}
			return nil
		}
		backoff := func(attempt int) time.Duration {
			delays = append(delays, attempt)
			return time.Millisecond
		}

		ok := warmup.Run(context.Background(), "stats", fn, 5, backoff)

		So(ok, ShouldBeTrue)
		So(calls, ShouldEqual, 3)
		So(delays, ShouldResemble, []int{1, 2})
	})

	Convey("Given a call that always fails", t, func() {
		calls := 0
		var delays []int
		fn := func(context.Context) error {
			calls++
			return errors.New("down")
		}
		backoff := func(attempt int) time.Duration {
			delays = append(delays, attempt)
			return time.Millisecond
		}

		ok := warmup.Run(context.Background(), "stats", fn, 5, backoff)

		Convey("Then it gives up after the last attempt without a trailing sleep", func() {
			So(ok, ShouldBeFalse)
			So(calls, ShouldEqual, 5)
			So(delays, ShouldResemble, []int{1, 2, 3, 4})
		})
	})

	Convey("Given a cancelled context during backoff", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		fn := func(context.Context) error {
			calls++
			cancel()
			return errors.New("down")
		}

		start := time.Now()
		ok := warmup.Run(ctx, "stats", fn, 5, warmup.LinearBackoff(time.Hour))

		So(ok, ShouldBeFalse)
		So(calls, ShouldEqual, 1)
		So(time.Since(start), ShouldBeLessThan, time.Second)
	})

	Convey("Given zero attempts", t, func() {
		called := false
		ok := warmup.Run(context.Background(), "stats", func(context.Context) error { called = true; return nil }, 0, nil)
		So(ok, ShouldBeFalse)
		So(called, ShouldBeFalse)
	})
}
