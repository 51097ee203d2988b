// Package repository defines the snapshot store interface and an in-memory
// implementation.
package repository

import (
	"context"

	"github.com/okian/boxscore/internal/domain/model"
)

// Store provides read/write access to stat snapshots keyed by
// (subject id, event id). Rows are only ever replaced whole, never patched,
// and never deleted.
type Store interface {
	// Exists reports whether a snapshot is stored for key.
	Exists(ctx context.Context, key model.Key) (bool, error)

	// Get returns the snapshot for key or model.ErrNotFound.
	Get(ctx context.Context, key model.Key) (model.StatSnapshot, error)

	// Upsert inserts s or replaces the stored row for its key. CreatedAt of an
	// existing row is preserved and UpdatedAt is set to the store's clock.
	// created is true when the key was not stored before.
	Upsert(ctx context.Context, s model.StatSnapshot) (created bool, err error)

	// InsertIfAbsent stores s only when its key is not stored yet. An
	// existing row is left untouched and model.ErrConflictIgnored is returned.
	InsertIfAbsent(ctx context.Context, s model.StatSnapshot) error

	// Update replaces the row for key with fn's result. fn sees the stored
	// row (or the zero value and exists=false) and runs while the store holds
	// its write lock, so no other write to key can land between the read and
	// the write. The key of fn's result is forced to key.
	Update(ctx context.Context, key model.Key, fn UpdateFunc) (created bool, err error)

	// Window returns up to n snapshots for subjectID, newest event first.
	// Snapshots without an event date sort last; ties break on event id desc.
	Window(ctx context.Context, subjectID int64, n int) ([]model.StatSnapshot, error)

	// Latest returns the newest snapshot for subjectID or model.ErrNotFound.
	Latest(ctx context.Context, subjectID int64) (model.StatSnapshot, error)

	// Count returns the number of stored snapshots.
	Count(ctx context.Context) (int, error)
}

// UpdateFunc computes a replacement row from the stored one.
type UpdateFunc func(prev model.StatSnapshot, exists bool) model.StatSnapshot

// ValidKey reports whether both halves of key are set.
func ValidKey(key model.Key) bool {
	return key.SubjectID > 0 && key.EventID > 0
}

// Newer orders snapshots for a window: event date desc with unknown dates
// last, then event id desc.
func Newer(a, b model.StatSnapshot) bool {
	switch {
	case a.EventDate.IsZero() != b.EventDate.IsZero():
		return !a.EventDate.IsZero()
	case !a.EventDate.Equal(b.EventDate):
		return a.EventDate.After(b.EventDate)
	default:
		return a.EventID > b.EventID
	}
}
