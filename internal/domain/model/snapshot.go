package model

import "time"

// Stats holds per-event statistics. A nil field means the value was missing
// or could not be parsed upstream.
type Stats struct {
	Minutes   *float64
	Points    *float64
	Rebounds  *float64
	Assists   *float64
	Steals    *float64
	Blocks    *float64
	Turnovers *float64
	FGM       *float64
	FGA       *float64
	FGPct     *float64
	FG3M      *float64
	FG3A      *float64
	FG3Pct    *float64
	FTM       *float64
	FTA       *float64
	FTPct     *float64
}

// Key identifies a snapshot.
type Key struct {
	SubjectID int64
	EventID   int64
}

// StatSnapshot is one subject's statistics for one event.
type StatSnapshot struct {
	SubjectID     int64
	EventID       int64
	SubjectName   string
	EventDate     time.Time // calendar day, midnight UTC; zero when unknown
	TeamID        *int64
	TeamAbbr      string
	OpponentAbbr  string
	TeamScore     *float64
	OpponentScore *float64
	Result        string // "W", "L" or empty
	Stats
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the snapshot's unique key.
func (s StatSnapshot) Key() Key {
	return Key{SubjectID: s.SubjectID, EventID: s.EventID}
}

// Result flags.
const (
	ResultWin  = "W"
	ResultLoss = "L"
)

// ResultFor derives the win/loss flag from a pair of scores. It is empty
// unless both scores are known.
func ResultFor(team, opponent *float64) string {
	if team == nil || opponent == nil {
		return ""
	}
	if *team > *opponent {
		return ResultWin
	}
	return ResultLoss
}

// LedgerEntry marks an event as fully reconciled.
type LedgerEntry struct {
	EventID     int64
	EventDate   time.Time
	ProcessedAt time.Time
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
