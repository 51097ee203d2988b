// Package ledger records which completed events have been fully reconciled.
package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/boxscore/internal/domain/model"
)

// Ledger is an append-only record of reconciled events. Once an event id is
// recorded it is never removed, so a recorded event is never reprocessed
// automatically.
type Ledger interface {
	// Has reports whether eventID was already recorded.
	Has(ctx context.Context, eventID int64) (bool, error)

	// Record stores entry unless its event id is already present. recorded is
	// false when the entry already existed; the existing entry is left as is.
	Record(ctx context.Context, entry model.LedgerEntry) (recorded bool, err error)

	// Get returns the entry for eventID or model.ErrNotFound.
	Get(ctx context.Context, eventID int64) (model.LedgerEntry, error)

	Size(ctx context.Context) (int64, error)
}

// inMemoryLedger implements Ledger with a map guarded by a RWMutex.
type inMemoryLedger struct {
	mu      sync.RWMutex
	entries map[int64]model.LedgerEntry
	size    atomic.Int64
	now     func() time.Time
}

// NewInMemory creates an empty in-memory ledger.
func NewInMemory(opts ...Option) Ledger {
	l := &inMemoryLedger{
		entries: make(map[int64]model.LedgerEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *inMemoryLedger) Has(_ context.Context, eventID int64) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[eventID]
	return ok, nil
}

func (l *inMemoryLedger) Record(ctx context.Context, entry model.LedgerEntry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[entry.EventID]; exists {
		return false, nil
	}
	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = l.now().UTC()
	}
	l.entries[entry.EventID] = entry
	l.size.Add(1)
	return true, nil
}

func (l *inMemoryLedger) Get(_ context.Context, eventID int64) (model.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[eventID]
	if !ok {
		return model.LedgerEntry{}, model.ErrNotFound
	}
	return e, nil
}

// Size returns the number of recorded events.
func (l *inMemoryLedger) Size(_ context.Context) (int64, error) {
	return l.size.Load(), nil
}
