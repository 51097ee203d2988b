package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/okian/boxscore/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.HTTPRateLimit, convey.ShouldEqual, 600)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.RecentWindowSize, convey.ShouldEqual, 5)
			convey.So(cfg.RecentWindowTTL(), convey.ShouldEqual, 6*time.Hour)
			convey.So(cfg.ScheduleTTL(), convey.ShouldEqual, 30*time.Minute)
			convey.So(cfg.SweepInterval(), convey.ShouldEqual, time.Hour)
			convey.So(cfg.WarmupAttempts, convey.ShouldEqual, 5)
			convey.So(cfg.WarmupBackoff(), convey.ShouldEqual, 1500*time.Millisecond)
			convey.So(config.Validate(cfg), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.UpstreamTimeout(), convey.ShouldEqual, 10*time.Second)
				convey.So(cfg.Location().String(), convey.ShouldEqual, "America/New_York")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("BOXSCORE_ADDR", ":8080")
			_ = os.Setenv("BOXSCORE_SWEEP_INTERVAL_MS", "60000")
			_ = os.Setenv("BOXSCORE_RECENT_WINDOW_SIZE", "10")
			_ = os.Setenv("BOXSCORE_STORE_DRIVER", "sqlite")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.SweepInterval(), convey.ShouldEqual, time.Minute)
				convey.So(cfg.RecentWindowSize, convey.ShouldEqual, 10)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreSQLite)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := writeTemp(t, "boxscore.yaml", `
addr: ":9090"
schedule_ttl_ms: 60000
upcoming_days: 7
timezone: "UTC"
`)
			_ = os.Setenv("BOXSCORE_CONFIG", tmpFile)
			_ = os.Setenv("BOXSCORE_UPCOMING_DAYS", "3")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ScheduleTTL(), convey.ShouldEqual, time.Minute)
				convey.So(cfg.UpcomingDays, convey.ShouldEqual, 3)
				convey.So(cfg.Location(), convey.ShouldEqual, time.UTC)
			})
		})

		convey.Convey("When loading config with a dotenv file", func() {
			tmpFile := writeTemp(t, "boxscore.env", "BOXSCORE_UPSTREAM_BASE_URL=http://stats.internal:5001\n")
			_ = os.Setenv("BOXSCORE_ENV_FILE", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then its variables should be applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.UpstreamBaseURL, convey.ShouldEqual, "http://stats.internal:5001")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := writeTemp(t, "boxscore.yaml", `invalid: yaml: content: [`)
			_ = os.Setenv("BOXSCORE_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("BOXSCORE_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("BOXSCORE_SWEEP_INTERVAL_MS", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given config validation", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		cases := map[string][2]string{
			"empty addr":            {"BOXSCORE_ADDR", ""},
			"unknown store driver":  {"BOXSCORE_STORE_DRIVER", "postgres"},
			"zero sweep interval":   {"BOXSCORE_SWEEP_INTERVAL_MS", "0"},
			"zero recent window":    {"BOXSCORE_RECENT_WINDOW_SIZE", "0"},
			"unparsable upstream":   {"BOXSCORE_UPSTREAM_BASE_URL", "not a url"},
			"unknown timezone":      {"BOXSCORE_TIMEZONE", "Mars/Olympus_Mons"},
			"unknown log level":     {"BOXSCORE_LOG_LEVEL", "verbose"},
			"negative upcoming day": {"BOXSCORE_UPCOMING_DAYS", "-1"},
			"negative rate limit":   {"BOXSCORE_HTTP_RATE_LIMIT", "-5"},
		}
		for name, kv := range cases {
			convey.Convey("When the config has "+name, func() {
				_ = os.Setenv(kv[0], kv[1])

				cfg, err := config.Load(ctx)

				convey.Convey("Then it should be rejected as invalid", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(cfg, convey.ShouldBeNil)
				})
			})
		}

		convey.Convey("When sqlite is selected without a path", func() {
			cfg := config.New()
			cfg.StoreDriver = config.StoreSQLite
			cfg.SQLitePath = ""

			convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"BOXSCORE_CONFIG",
		"BOXSCORE_ENV_FILE",
		"BOXSCORE_ADDR",
		"BOXSCORE_LOG_LEVEL",
		"BOXSCORE_STORE_DRIVER",
		"BOXSCORE_SWEEP_INTERVAL_MS",
		"BOXSCORE_RECENT_WINDOW_SIZE",
		"BOXSCORE_UPSTREAM_BASE_URL",
		"BOXSCORE_TIMEZONE",
		"BOXSCORE_UPCOMING_DAYS",
		"BOXSCORE_HTTP_RATE_LIMIT",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
