package liveblend

import (
	"time"

	"github.com/okian/boxscore/pkg/logger"
)

// Option applies a configuration option to the Blend.
type Option func(*Blend)

// WithLocation sets the timezone that decides which calendar day is today.
func WithLocation(loc *time.Location) Option {
	return func(b *Blend) {
		if loc != nil {
			b.loc = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Blend) {
		if now != nil {
			b.now = now
		}
	}
}

// WithUpcomingDays sets the UpcomingGames horizon.
func WithUpcomingDays(days int) Option {
	return func(b *Blend) {
		if days >= 0 {
			b.upcomingDays = days
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Blend) {
		if l != nil {
			b.logger = l
		}
	}
}

// CacheOption applies a configuration option to the ScheduleCache.
type CacheOption func(*ScheduleCache)

// WithCacheClock overrides the cache's time source.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *ScheduleCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheLogger sets the cache's logger.
func WithCacheLogger(l logger.Logger) CacheOption {
	return func(c *ScheduleCache) {
		if l != nil {
			c.logger = l
		}
	}
}
