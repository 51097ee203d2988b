package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okian/boxscore/internal/domain/ledger"
	"github.com/okian/boxscore/internal/domain/model"
)

// Ledger implements ledger.Ledger on SQLite. Inserts of an already recorded
// event are ignored.
type Ledger struct {
	d *DB
}

var _ ledger.Ledger = (*Ledger)(nil)

func (l *Ledger) Has(ctx context.Context, eventID int64) (bool, error) {
	var one int
	err := l.d.db.QueryRowContext(ctx, "SELECT 1 FROM event_ledger WHERE event_id = ?", eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger has %d: %w", eventID, err)
	}
	return true, nil
}

func (l *Ledger) Record(ctx context.Context, entry model.LedgerEntry) (bool, error) {
	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = l.d.now().UTC()
	}
	l.d.mu.Lock()
	defer l.d.mu.Unlock()

	res, err := l.d.db.ExecContext(ctx,
		"INSERT INTO event_ledger (event_id, event_date, processed_at) VALUES (?, ?, ?) ON CONFLICT (event_id) DO NOTHING",
		entry.EventID, formatDate(entry.EventDate), entry.ProcessedAt.UnixNano())
	if err != nil {
		return false, fmt.Errorf("ledger record %d: %w", entry.EventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ledger record %d: %w", entry.EventID, err)
	}
	return n == 1, nil
}

func (l *Ledger) Get(ctx context.Context, eventID int64) (model.LedgerEntry, error) {
	var (
		date      string
		processed int64
	)
	err := l.d.db.QueryRowContext(ctx,
		"SELECT event_date, processed_at FROM event_ledger WHERE event_id = ?", eventID).Scan(&date, &processed)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LedgerEntry{}, fmt.Errorf("ledger %d: %w", eventID, model.ErrNotFound)
	}
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("ledger get %d: %w", eventID, err)
	}
	return model.LedgerEntry{EventID: eventID, EventDate: parseDate(date), ProcessedAt: fromNanos(processed)}, nil
}

func (l *Ledger) Size(ctx context.Context) (int64, error) {
	var n int64
	if err := l.d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM event_ledger").Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger size: %w", err)
	}
	return n, nil
}
