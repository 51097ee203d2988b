// Package api exposes the operational HTTP surface: liveness, Prometheus
// metrics and service statistics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/okian/boxscore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default per-client request budget for the operational routes.
const (
	defaultRateLimitRequests = 600
	defaultRateLimitWindow   = time.Minute
)

// Dependencies required by the operational handlers.
type Dependencies interface {
	StatsProvider
	Probe
}

// Server wires the operational routes.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	metrics       http.Handler

	rateRequests int
	rateWindow   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit caps requests per client IP within window. Zero requests disables the limit.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(s *Server) {
		if requests >= 0 && window > 0 {
			s.rateRequests = requests
			s.rateWindow = window
		}
	}
}

// NewServer creates a server backed by deps.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(deps),
		statsHandler:  NewStatsHandler(deps),
		metrics:       promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
		rateRequests:  defaultRateLimitRequests,
		rateWindow:    defaultRateLimitWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with every route registered.
func (s *Server) Handler(_ context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	if s.rateRequests > 0 {
		r.Use(httprate.LimitByIP(s.rateRequests, s.rateWindow))
	}

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Head("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Method(http.MethodGet, "/metrics", s.metrics)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
