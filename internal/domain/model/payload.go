package model

import "time"

// FinalEvent is one entry of the completed-events listing.
type FinalEvent struct {
	ID         int64
	Date       time.Time
	StatusText string
}

// SideLine is one side's line in an event detail payload.
type SideLine struct {
	TeamID       int64
	Abbreviation string
	Points       *float64
}

// SubjectLine is one subject's line in an event detail payload.
type SubjectLine struct {
	SubjectID   int64
	SubjectName string
	TeamID      *int64
	TeamAbbr    string
	Stats
}

// EventDetail is the per-subject and per-side statistics for one event.
type EventDetail struct {
	EventID  int64
	Subjects []SubjectLine
	Sides    []SideLine
}

// LogEntry is one event in a subject's recent event log.
type LogEntry struct {
	EventID int64
	Date    time.Time
	Matchup string
	Result  string
	Stats
}
