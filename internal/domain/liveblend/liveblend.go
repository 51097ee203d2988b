// Package liveblend answers date, range and week queries by merging the
// cached season schedule with the live scoreboard for today.
package liveblend

import (
	"context"
	"sort"
	"time"

	"github.com/okian/boxscore/internal/domain/model"
	"github.com/okian/boxscore/pkg/logger"
)

// DefaultUpcomingDays is the horizon of UpcomingGames.
const DefaultUpcomingDays = 14

// LiveSource serves today's events with real-time scores.
type LiveSource interface {
	FetchTodayScoreboard(ctx context.Context) ([]model.Event, error)
}

// Blend merges the schedule cache with the live feed. Queries never fail;
// upstream problems degrade to cached or partial results and are logged.
type Blend struct {
	schedule     *ScheduleCache
	live         LiveSource
	loc          *time.Location
	now          func() time.Time
	upcomingDays int
	logger       logger.Logger
}

// New creates a Blend.
func New(schedule *ScheduleCache, live LiveSource, opts ...Option) *Blend {
	b := &Blend{
		schedule:     schedule,
		live:         live,
		loc:          time.UTC,
		now:          time.Now,
		upcomingDays: DefaultUpcomingDays,
		logger:       logger.Get().Named("liveblend"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Today returns the current calendar day in the configured location.
func (b *Blend) Today() time.Time {
	return model.DateOf(b.now(), b.loc)
}

// Schedule returns the underlying schedule cache.
func (b *Blend) Schedule() *ScheduleCache {
	return b.schedule
}

// TodaysGames reads the live feed directly. If the feed is unavailable the
// schedule's entries for today are returned instead.
func (b *Blend) TodaysGames(ctx context.Context) []model.Event {
	events, err := b.live.FetchTodayScoreboard(ctx)
	if err == nil {
		return events
	}
	b.logger.Warn(ctx, "live feed unavailable, using schedule for today", logger.Error(err))
	today := b.Today()
	return filter(b.scheduled(ctx), func(e model.Event) bool { return e.Date.Equal(today) })
}

// GamesForDate returns the events on day. Today is always answered from the
// live feed; other days come from the schedule cache only.
func (b *Blend) GamesForDate(ctx context.Context, day time.Time) []model.Event {
	day = calendarDay(day)
	if day.Equal(b.Today()) {
		return b.TodaysGames(ctx)
	}
	return filter(b.scheduled(ctx), func(e model.Event) bool { return e.Date.Equal(day) })
}

// GamesForRange returns the events between start and end inclusive, sorted
// by date. Entries dated today are replaced by their live counterpart when
// the live feed has one.
func (b *Blend) GamesForRange(ctx context.Context, start, end time.Time) []model.Event {
	start, end = calendarDay(start), calendarDay(end)
	if end.Before(start) {
		return []model.Event{}
	}
	out := filter(b.scheduled(ctx), func(e model.Event) bool {
		return !e.Date.Before(start) && !e.Date.After(end)
	})

	today := b.Today()
	if !today.Before(start) && !today.After(end) {
		live, err := b.live.FetchTodayScoreboard(ctx)
		if err != nil {
			b.logger.Warn(ctx, "live feed unavailable, keeping scheduled entries for today", logger.Error(err))
		} else {
			byID := make(map[int64]model.Event, len(live))
			for _, e := range live {
				byID[e.ID] = e
			}
			for i, e := range out {
				if !e.Date.Equal(today) {
					continue
				}
				if l, ok := byID[e.ID]; ok {
					l.Date = e.Date
					out[i] = l
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// GamesForWeek returns the Sunday-to-Saturday week containing day.
func (b *Blend) GamesForWeek(ctx context.Context, day time.Time) []model.Event {
	start, end := WeekOf(day)
	return b.GamesForRange(ctx, start, end)
}

// UpcomingGames returns the events from today through the upcoming horizon
// that have not completed.
func (b *Blend) UpcomingGames(ctx context.Context) []model.Event {
	today := b.Today()
	all := b.GamesForRange(ctx, today, today.AddDate(0, 0, b.upcomingDays))
	return filter(all, func(e model.Event) bool { return !e.Completed() })
}

// WeekOf returns the most recent Sunday on or before day and the Saturday
// six days later.
func WeekOf(day time.Time) (start, end time.Time) {
	day = calendarDay(day)
	start = day.AddDate(0, 0, -int(day.Weekday()))
	return start, start.AddDate(0, 0, 6)
}

// scheduled returns the cached schedule, or nothing when no schedule could
// ever be loaded.
func (b *Blend) scheduled(ctx context.Context) []model.Event {
	events, err := b.schedule.Events(ctx)
	if err != nil {
		b.logger.Warn(ctx, "schedule unavailable", logger.Error(err))
		return nil
	}
	return events
}

// calendarDay drops the clock part of a date, keeping its own calendar fields.
func calendarDay(t time.Time) time.Time {
	return model.Day(t.Date())
}

func filter(events []model.Event, keep func(model.Event) bool) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
