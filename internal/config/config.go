// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Durations are configured as integer milliseconds and exposed as
//   time.Duration through accessor methods.
// - Provide New() to build a Config with defaults; Load layers sources on top.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"time"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// Addr configures the operational HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// HTTPRateLimit caps operational requests per client IP per minute; 0 disables it.
	HTTPRateLimit int `koanf:"http_rate_limit" validate:"gte=0"`

	// StoreDriver selects snapshot and ledger persistence: memory or sqlite.
	StoreDriver string `koanf:"store_driver" validate:"oneof=memory sqlite"`

	// SQLitePath is the database file used when StoreDriver is sqlite.
	SQLitePath string `koanf:"sqlite_path" validate:"required_if=StoreDriver sqlite"`

	// UpstreamBaseURL is the stats service serving finals, box scores and game logs.
	UpstreamBaseURL string `koanf:"upstream_base_url" validate:"required,url"`

	// LiveFeedURL serves today's scoreboard.
	LiveFeedURL string `koanf:"live_feed_url" validate:"required,url"`

	// ScheduleURL serves the season-wide schedule.
	ScheduleURL string `koanf:"schedule_url" validate:"required,url"`

	// UpstreamTimeoutMS bounds every outbound call.
	UpstreamTimeoutMS int `koanf:"upstream_timeout_ms" validate:"gt=0"`

	// UpstreamMinIntervalMS paces calls to the stats service.
	UpstreamMinIntervalMS int `koanf:"upstream_min_interval_ms" validate:"gte=0"`

	// SweepIntervalMS is the delay between reconciliation sweeps.
	SweepIntervalMS int `koanf:"sweep_interval_ms" validate:"gt=0"`

	// RecentWindowSize is the number of recent events served per subject.
	RecentWindowSize int `koanf:"recent_window_size" validate:"gt=0"`

	// RecentWindowTTLMS is how long a recent window is served without refetching.
	RecentWindowTTLMS int64 `koanf:"recent_window_ttl_ms" validate:"gt=0"`

	// ScheduleTTLMS is how long the cached schedule is served without refetching.
	ScheduleTTLMS int `koanf:"schedule_ttl_ms" validate:"gt=0"`

	// UpcomingDays is the horizon for upcoming games and the default event listing.
	UpcomingDays int `koanf:"upcoming_days" validate:"gte=0"`

	// WarmupAttempts and WarmupBackoffMS drive the startup warm-up retry loop.
	WarmupAttempts  int `koanf:"warmup_attempts" validate:"gte=0"`
	WarmupBackoffMS int `koanf:"warmup_backoff_ms" validate:"gte=0"`

	// Timezone decides which calendar day is "today".
	Timezone string `koanf:"timezone" validate:"required"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		HTTPRateLimit:         600,
		StoreDriver:           StoreMemory,
		SQLitePath:            "boxscore.db",
		UpstreamBaseURL:       "http://localhost:5001",
		LiveFeedURL:           "https://cdn.nba.com/static/json/liveData/scoreboard/todaysScoreboard_00.json",
		ScheduleURL:           "https://cdn.nba.com/static/json/staticData/scheduleLeagueV2.json",
		UpstreamTimeoutMS:     10_000,
		UpstreamMinIntervalMS: 600,
		SweepIntervalMS:       3_600_000,
		RecentWindowSize:      5,
		RecentWindowTTLMS:     6 * 3_600_000,
		ScheduleTTLMS:         30 * 60_000,
		UpcomingDays:          14,
		WarmupAttempts:        5,
		WarmupBackoffMS:       1_500,
		Timezone:              "America/New_York",
	}
}

// UpstreamTimeout returns the per-request upstream timeout.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutMS) * time.Millisecond
}

// UpstreamMinInterval returns the minimum spacing between stats service calls.
func (c *Config) UpstreamMinInterval() time.Duration {
	return time.Duration(c.UpstreamMinIntervalMS) * time.Millisecond
}

// SweepInterval returns the reconciliation interval.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMS) * time.Millisecond
}

// RecentWindowTTL returns the recent window freshness TTL.
func (c *Config) RecentWindowTTL() time.Duration {
	return time.Duration(c.RecentWindowTTLMS) * time.Millisecond
}

// ScheduleTTL returns the schedule cache TTL.
func (c *Config) ScheduleTTL() time.Duration {
	return time.Duration(c.ScheduleTTLMS) * time.Millisecond
}

// WarmupBackoff returns the base warm-up backoff step.
func (c *Config) WarmupBackoff() time.Duration {
	return time.Duration(c.WarmupBackoffMS) * time.Millisecond
}

// Location resolves Timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
