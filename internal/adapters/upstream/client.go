// Package upstream implements the live feed, schedule and stats service
// clients consumed by the reconciler, the on-demand refresh and the live
// blend.
//
// Every call is bounded by a per-request timeout and goes through a circuit
// breaker. Calls to the stats service are additionally paced by a rate
// limiter. Transport failures, timeouts, non-2xx responses and an open
// breaker are reported as model.ErrUpstreamUnavailable; payloads that cannot
// be decoded are reported as model.ErrMalformedPayload.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/boxscore/internal/domain/model"
	"github.com/okian/boxscore/pkg/logger"
	"github.com/okian/boxscore/pkg/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// Default client configuration constants.
const (
	defaultTimeout         = 10 * time.Second
	defaultMinInterval     = 600 * time.Millisecond
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
	maxBodyBytes           = 16 << 20
)

// Breaker names, also used as metric labels.
const (
	breakerFeeds = "feeds"
	breakerStats = "stats"
)

// Client talks to the live feed, the schedule feed and the stats service.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	liveURL     string
	scheduleURL string
	timeout     time.Duration
	minInterval time.Duration
	failures    uint32
	cooldown    time.Duration
	loc         *time.Location
	now         func() time.Time
	logger      logger.Logger

	limiter *rate.Limiter
	feeds   *gobreaker.CircuitBreaker[[]byte]
	stats   *gobreaker.CircuitBreaker[[]byte]
}

// New creates a Client. Endpoints default to empty and must be provided
// through options.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{},
		timeout:     defaultTimeout,
		minInterval: defaultMinInterval,
		failures:    defaultBreakerFailures,
		cooldown:    defaultBreakerCooldown,
		loc:         time.UTC,
		now:         time.Now,
		logger:      logger.Get().Named("upstream"),
	}
	for _, opt := range opts {
		opt(c)
	}

	limit := rate.Inf
	if c.minInterval > 0 {
		limit = rate.Every(c.minInterval)
	}
	c.limiter = rate.NewLimiter(limit, 1)
	c.feeds = c.newBreaker(breakerFeeds)
	c.stats = c.newBreaker(breakerStats)
	return c
}

func (c *Client) newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	metrics.UpdateBreakerState(name, stateToFloat(gobreaker.StateClosed))
	failures := c.failures
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     c.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			metrics.UpdateBreakerState(name, stateToFloat(to))
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
	})
}

// statusError reports a non-2xx upstream response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.code)
}

// request performs one bounded call through breaker. Stats service calls
// wait on the shared limiter first.
func (c *Client) request(ctx context.Context, breaker *gobreaker.CircuitBreaker[[]byte], endpoint, method, url string) ([]byte, error) {
	start := time.Now()
	body, err := breaker.Execute(func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		if breaker == c.stats {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := resp.Body.Close(); cerr != nil {
				c.logger.Debug(ctx, "failed to close response body", logger.Error(cerr))
			}
		}()

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			return nil, &statusError{code: resp.StatusCode}
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	})
	metrics.ObserveUpstreamLatency(endpoint, float64(time.Since(start).Milliseconds()))

	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = "rejected"
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		}
		metrics.RecordUpstreamRequest(endpoint, outcome)
		return nil, fmt.Errorf("%w: %s: %w", model.ErrUpstreamUnavailable, endpoint, err)
	}
	metrics.RecordUpstreamRequest(endpoint, "success")
	return body, nil
}

// malformed wraps a decode failure for endpoint.
func malformed(endpoint string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrMalformedPayload, endpoint, err)
}

// stateToFloat converts circuit breaker state to numeric value for metrics.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
