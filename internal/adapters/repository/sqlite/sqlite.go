/*
Package sqlite provides SQLite-backed implementations of the snapshot store
and the event ledger.

TABLES:

	stat_snapshots: one row per (subject_id, event_id), replaced whole on
	                upsert; created_at survives replacement.
	event_ledger:   one row per reconciled event_id; rows are never updated
	                or deleted.

Timestamps are stored as unix nanoseconds and calendar dates as
YYYY-MM-DD text (empty when unknown) so they sort lexically.

Use ":memory:" for a throwaway database. The pool is limited to a single
connection, which keeps an in-memory database alive for the lifetime of the
DB and serializes writers.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const dateLayout = "2006-01-02"

// DB owns the SQLite connection shared by the snapshot store and the ledger.
type DB struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithClock sets the clock used to stamp rows.
func WithClock(now func() time.Time) Option {
	return func(d *DB) {
		if now != nil {
			d.now = now
		}
	}
}

// Open opens (creating if needed) the database at path and migrates the schema.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	d := &DB{db: sqlDB, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Snapshots returns the snapshot store backed by d.
func (d *DB) Snapshots() *SnapshotStore {
	return &SnapshotStore{d: d}
}

// Ledger returns the event ledger backed by d.
func (d *DB) Ledger() *Ledger {
	return &Ledger{d: d}
}

func (d *DB) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS stat_snapshots (
		subject_id     INTEGER NOT NULL,
		event_id       INTEGER NOT NULL,
		subject_name   TEXT NOT NULL DEFAULT '',
		event_date     TEXT NOT NULL DEFAULT '',
		team_id        INTEGER,
		team_abbr      TEXT NOT NULL DEFAULT '',
		opponent_abbr  TEXT NOT NULL DEFAULT '',
		team_score     REAL,
		opponent_score REAL,
		result         TEXT NOT NULL DEFAULT '',
		minutes        REAL,
		points         REAL,
		rebounds       REAL,
		assists        REAL,
		steals         REAL,
		blocks         REAL,
		turnovers      REAL,
		fgm            REAL,
		fga            REAL,
		fg_pct         REAL,
		fg3m           REAL,
		fg3a           REAL,
		fg3_pct        REAL,
		ftm            REAL,
		fta            REAL,
		ft_pct         REAL,
		created_at     INTEGER NOT NULL,
		updated_at     INTEGER NOT NULL,
		UNIQUE (subject_id, event_id)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_subject_date
		ON stat_snapshots(subject_id, event_date DESC, event_id DESC);

	CREATE TABLE IF NOT EXISTS event_ledger (
		event_id     INTEGER PRIMARY KEY,
		event_date   TEXT NOT NULL DEFAULT '',
		processed_at INTEGER NOT NULL
	);
	`
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
