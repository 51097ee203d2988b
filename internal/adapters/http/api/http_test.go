package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/boxscore/internal/adapters/http/api"
	"github.com/okian/boxscore/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	started bool
	stats   map[string]any
}

func (m *mockDeps) Started() bool             { return m.started }
func (m *mockDeps) GetStats() map[string]any { return m.stats }

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer_Routes(t *testing.T) {
	Convey("Given an API server over a started service", t, func() {
		deps := &mockDeps{started: true, stats: map[string]any{"started": true, "snapshots": 3}}
		h := api.NewServer(deps).Handler(context.Background())

		Convey("The health endpoint answers ok as JSON", func() {
			rec := serve(h, http.MethodGet, "/healthz")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")

			var body map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body["status"], ShouldEqual, "ok")
		})

		Convey("The stats endpoint returns the provider's map", func() {
			rec := serve(h, http.MethodGet, "/stats")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var body map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body["started"], ShouldEqual, true)
			So(body["snapshots"], ShouldEqual, float64(3))
		})

		Convey("Non-GET methods are rejected", func() {
			So(serve(h, http.MethodPost, "/stats").Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(serve(h, http.MethodDelete, "/healthz").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("The metrics endpoint exposes the custom registry", func() {
			metrics.RecordSweep("completed")
			serve(h, http.MethodGet, "/stats")

			rec := serve(h, http.MethodGet, "/metrics")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "boxscore_ingest_sweeps_total")
			So(rec.Body.String(), ShouldContainSubstring, `endpoint="stats"`)
		})

		Convey("Unknown paths are not found", func() {
			So(serve(h, http.MethodGet, "/leaderboard").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Responses carry a request id", func() {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set("X-Request-Id", "abc")
			h.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusOK)
		})
	})

	Convey("Given a server with a tight rate limit", t, func() {
		h := api.NewServer(&mockDeps{started: true, stats: map[string]any{}}, api.WithRateLimit(2, time.Minute)).Handler(context.Background())

		Convey("Requests beyond the budget are rejected", func() {
			So(serve(h, http.MethodGet, "/healthz").Code, ShouldEqual, http.StatusOK)
			So(serve(h, http.MethodGet, "/stats").Code, ShouldEqual, http.StatusOK)
			So(serve(h, http.MethodGet, "/healthz").Code, ShouldEqual, http.StatusTooManyRequests)
		})
	})

	Convey("Given a server with rate limiting disabled", t, func() {
		h := api.NewServer(&mockDeps{started: true, stats: map[string]any{}}, api.WithRateLimit(0, time.Minute)).Handler(context.Background())

		Convey("Every request is served", func() {
			for i := 0; i < 20; i++ {
				So(serve(h, http.MethodGet, "/healthz").Code, ShouldEqual, http.StatusOK)
			}
		})
	})

	Convey("Given a service that has not started", t, func() {
		h := api.NewServer(&mockDeps{}).Handler(context.Background())

		Convey("Health reports not ready", func() {
			rec := serve(h, http.MethodGet, "/healthz")
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(strings.Contains(rec.Body.String(), "not_ready"), ShouldBeTrue)

			body := serve(h, http.MethodGet, "/metrics").Body.String()
			So(body, ShouldContainSubstring, "boxscore_ingest_http_errors_total{")
			So(body, ShouldContainSubstring, `endpoint="healthz",error_type="server_error",method="GET",severity="high"`)
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a wrapped handler", t, func() {
		called := false
		wrapped := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.WriteHeader(http.StatusTeapot)
		}, "test")

		Convey("The inner status code reaches the client", func() {
			rec := httptest.NewRecorder()
			wrapped(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
			So(called, ShouldBeTrue)
			So(rec.Code, ShouldEqual, http.StatusTeapot)
		})

		Convey("An error status is counted as a client error", func() {
			wrapped(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))

			families, err := metrics.GetRegistry().Gather()
			So(err, ShouldBeNil)
			found := false
			for _, f := range families {
				if f.GetName() != "boxscore_ingest_http_errors_total" {
					continue
				}
				for _, m := range f.GetMetric() {
					labels := map[string]string{}
					for _, l := range m.GetLabel() {
						labels[l.GetName()] = l.GetValue()
					}
					if labels["endpoint"] == "test" && labels["method"] == http.MethodPost {
						found = true
						So(labels["error_type"], ShouldEqual, "client_error")
						So(labels["severity"], ShouldEqual, "medium")
						So(m.GetCounter().GetValue(), ShouldBeGreaterThanOrEqualTo, 1)
					}
				}
			}
			So(found, ShouldBeTrue)
		})
	})
}
