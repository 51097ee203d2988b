// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the completion state of an event as reported upstream.
type Status int

// Event completion states. The numeric values match the upstream status codes.
const (
	StatusUnknown    Status = 0
	StatusScheduled  Status = 1
	StatusInProgress Status = 2
	StatusFinal      Status = 3
)

// StatusFrom maps an upstream status code to a Status, falling back to the
// status text when the code is not one of the known values.
func StatusFrom(code int, text string) Status {
	switch Status(code) {
	case StatusScheduled, StatusInProgress, StatusFinal:
		return Status(code)
	}
	if strings.Contains(strings.ToLower(text), "final") {
		return StatusFinal
	}
	return StatusUnknown
}

func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusInProgress:
		return "in_progress"
	case StatusFinal:
		return "final"
	default:
		return "unknown"
	}
}

// Side is one participant of an event.
type Side struct {
	TeamID       int64
	Name         string
	City         string
	Abbreviation string
	Score        *float64
	Wins         int
	Losses       int
}

// FullName returns "City Name", or whichever part is known.
func (s Side) FullName() string {
	return strings.TrimSpace(s.City + " " + s.Name)
}

// Record returns the win/loss record, e.g. "10-4".
func (s Side) Record() string {
	return fmt.Sprintf("%d-%d", s.Wins, s.Losses)
}

// Event is a scheduled, live or completed contest between two sides.
type Event struct {
	ID         int64
	Date       time.Time // calendar day, midnight UTC
	Status     Status
	StatusText string
	Period     int
	StartsAt   time.Time // tip-off in UTC, zero when unknown
	Home       Side
	Away       Side
}

// Completed reports whether the event is final, either by code or by its
// status text.
func (e Event) Completed() bool {
	return e.Status == StatusFinal || strings.Contains(strings.ToLower(e.StatusText), "final")
}

// DisplayStatus returns "scheduled" for scheduled events, the upstream text
// for live events and "Final" for completed ones.
func (e Event) DisplayStatus() string {
	switch {
	case e.Completed():
		return "Final"
	case e.Status == StatusScheduled:
		return "scheduled"
	default:
		return e.StatusText
	}
}

// DisplayTime renders the tip-off in loc ("7:30 PM") for scheduled events
// and falls back to the status text otherwise.
func (e Event) DisplayTime(loc *time.Location) string {
	if e.Status == StatusScheduled && !e.StartsAt.IsZero() {
		if loc == nil {
			loc = time.UTC
		}
		return e.StartsAt.In(loc).Format("3:04 PM")
	}
	return e.StatusText
}

// DateOf returns the calendar day of t in loc as midnight UTC, the form
// used for Event.Date and snapshot event dates.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Day truncates a calendar date already expressed in UTC to midnight.
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
