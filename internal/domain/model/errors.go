package model

import "errors"

// Error taxonomy shared by adapters and domain components.
var (
	// ErrUpstreamUnavailable covers network failures, timeouts, non-2xx
	// responses and an open circuit breaker.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMalformedPayload is returned when a payload has an unexpected shape
	// or is missing required fields such as a numeric event id.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrNotFound is returned by read operations when nothing matches.
	ErrNotFound = errors.New("not found")
	// ErrConflictIgnored marks a duplicate-key insert that was treated as a no-op.
	ErrConflictIgnored = errors.New("conflict ignored")
)
