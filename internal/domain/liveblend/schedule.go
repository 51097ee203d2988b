package liveblend

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/boxscore/internal/domain/model"
	"github.com/okian/boxscore/pkg/logger"
	"github.com/okian/boxscore/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const scheduleKey = "schedule"

// ScheduleSource serves the season-wide schedule.
type ScheduleSource interface {
	FetchFullSchedule(ctx context.Context) ([]model.Event, error)
}

// ScheduleCache holds the full schedule for a TTL. The cached list is
// replaced wholesale on each successful refresh and never patched.
//
// While one caller refreshes a stale cache, other callers are served the
// stale contents. Callers arriving before the first load share that load's
// outcome. A failed refresh keeps the previous contents; it is only surfaced
// as an error when nothing has been cached yet.
type ScheduleCache struct {
	source ScheduleSource
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger

	mu          sync.RWMutex
	events      []model.Event
	refreshedAt time.Time
	loaded      bool

	group      singleflight.Group
	refreshing atomic.Bool
}

// NewScheduleCache creates an empty cache.
func NewScheduleCache(source ScheduleSource, ttl time.Duration, opts ...CacheOption) *ScheduleCache {
	c := &ScheduleCache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.Get().Named("schedule"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the cached schedule, refreshing it first when stale. The
// returned slice is shared and must not be modified.
func (c *ScheduleCache) Events(ctx context.Context) ([]model.Event, error) {
	events, at, loaded := c.read()
	if loaded && c.fresh(at) {
		metrics.RecordScheduleCache("hit")
		return events, nil
	}

	if loaded && c.refreshing.Load() {
		metrics.RecordScheduleCache("stale_served")
		return events, nil
	}

	v, err, _ := c.group.Do(scheduleKey, func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		if loaded {
			metrics.RecordScheduleCache("fallback")
			c.logger.Warn(ctx, "schedule refresh failed, serving previous schedule",
				logger.Time("refreshed_at", at),
				logger.Error(err))
			return events, nil
		}
		metrics.RecordScheduleCache("unavailable")
		return nil, err
	}
	return v.([]model.Event), nil
}

// refresh fetches and installs a new schedule. It runs once per flight.
func (c *ScheduleCache) refresh(ctx context.Context) ([]model.Event, error) {
	c.refreshing.Store(true)
	defer c.refreshing.Store(false)

	// Another flight may have finished since the caller checked.
	if events, at, loaded := c.read(); loaded && c.fresh(at) {
		metrics.RecordScheduleCache("hit")
		return events, nil
	}

	fetched, err := c.source.FetchFullSchedule(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.events = fetched
	c.refreshedAt = c.now()
	c.loaded = true
	c.mu.Unlock()

	metrics.RecordScheduleCache("refreshed")
	c.logger.Debug(ctx, "schedule refreshed", logger.Int("events", len(fetched)))
	return fetched, nil
}

// RefreshedAt returns when the cache was last replaced, zero if never.
func (c *ScheduleCache) RefreshedAt() time.Time {
	_, at, _ := c.read()
	return at
}

// Len returns the number of cached events.
func (c *ScheduleCache) Len() int {
	events, _, _ := c.read()
	return len(events)
}

func (c *ScheduleCache) read() ([]model.Event, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.events, c.refreshedAt, c.loaded
}

func (c *ScheduleCache) fresh(at time.Time) bool {
	return c.now().Sub(at) < c.ttl
}
