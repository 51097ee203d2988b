// Package freshness decides whether a cached window of snapshots may be
// served without refetching.
package freshness

import (
	"time"

	"github.com/okian/boxscore/internal/domain/model"
)

// Verdict is the outcome of a freshness check.
type Verdict int

const (
	Stale Verdict = iota
	Fresh
)

func (v Verdict) String() string {
	if v == Fresh {
		return "fresh"
	}
	return "stale"
}

// Evaluate applies the freshness rule to a cached window:
// fewer than minCount rows is stale, any row without an update timestamp is
// stale, and a window whose newest update is strictly before now-ttl is stale.
func Evaluate(window []model.StatSnapshot, minCount int, ttl time.Duration, now time.Time) Verdict {
	if len(window) == 0 || len(window) < minCount {
		return Stale
	}
	var newest time.Time
	for i := range window {
		u := window[i].UpdatedAt
		if u.IsZero() {
			return Stale
		}
		if u.After(newest) {
			newest = u
		}
	}
	if newest.Before(now.Add(-ttl)) {
		return Stale
	}
	return Fresh
}

// Policy binds a TTL and a clock to Evaluate.
type Policy struct {
	ttl time.Duration
	now func() time.Time
}

// Option configures a Policy.
type Option func(*Policy)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		if now != nil {
			p.now = now
		}
	}
}

// New returns a Policy with the given TTL.
func New(ttl time.Duration, opts ...Option) *Policy {
	p := &Policy{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check evaluates window against minCount at the current time.
func (p *Policy) Check(window []model.StatSnapshot, minCount int) Verdict {
	return Evaluate(window, minCount, p.ttl, p.now())
}

// TTL returns the configured TTL.
func (p *Policy) TTL() time.Duration { return p.ttl }
