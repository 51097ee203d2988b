package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/boxscore/internal/domain/model"
	"github.com/okian/boxscore/pkg/metrics"
)

// MemoryStore is an in-memory Store. All mutations are serialized by a
// single lock; reads copy rows out under a read lock.
type MemoryStore struct {
	mu        sync.RWMutex
	bySubject map[int64]map[int64]model.StatSnapshot
	count     int
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		bySubject: make(map[int64]map[int64]model.StatSnapshot),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Exists(_ context.Context, key model.Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bySubject[key.SubjectID][key.EventID]
	return ok, nil
}

func (s *MemoryStore) Get(_ context.Context, key model.Key) (model.StatSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.bySubject[key.SubjectID][key.EventID]
	if !ok {
		return model.StatSnapshot{}, fmt.Errorf("snapshot %d/%d: %w", key.SubjectID, key.EventID, model.ErrNotFound)
	}
	return row, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, row model.StatSnapshot) (bool, error) {
	if err := s.checkWrite(ctx, row.Key()); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(row), nil
}

func (s *MemoryStore) InsertIfAbsent(ctx context.Context, row model.StatSnapshot) error {
	if err := s.checkWrite(ctx, row.Key()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySubject[row.SubjectID][row.EventID]; ok {
		return fmt.Errorf("snapshot %d/%d: %w", row.SubjectID, row.EventID, model.ErrConflictIgnored)
	}
	s.put(row)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, key model.Key, fn UpdateFunc) (bool, error) {
	if err := s.checkWrite(ctx, key); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, exists := s.bySubject[key.SubjectID][key.EventID]
	row := fn(prev, exists)
	row.SubjectID, row.EventID = key.SubjectID, key.EventID
	return s.put(row), nil
}

func (s *MemoryStore) checkWrite(ctx context.Context, key model.Key) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %d/%d", ErrInvalidKey, key.SubjectID, key.EventID)
	}
	return ctx.Err()
}

// put stores row and reports whether its key is new. Callers hold s.mu.
func (s *MemoryStore) put(row model.StatSnapshot) bool {
	now := s.now().UTC()
	events, ok := s.bySubject[row.SubjectID]
	if !ok {
		events = make(map[int64]model.StatSnapshot)
		s.bySubject[row.SubjectID] = events
	}
	prev, exists := events[row.EventID]
	if exists {
		row.CreatedAt = prev.CreatedAt
	} else {
		row.CreatedAt = now
		s.count++
	}
	row.UpdatedAt = now
	events[row.EventID] = row

	metrics.UpdateSnapshotCount(s.count)
	return !exists
}

func (s *MemoryStore) Window(_ context.Context, subjectID int64, n int) ([]model.StatSnapshot, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	s.mu.RLock()
	rows := make([]model.StatSnapshot, 0, len(s.bySubject[subjectID]))
	for _, row := range s.bySubject[subjectID] {
		rows = append(rows, row)
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return Newer(rows[i], rows[j]) })
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

func (s *MemoryStore) Latest(ctx context.Context, subjectID int64) (model.StatSnapshot, error) {
	rows, err := s.Window(ctx, subjectID, 1)
	if err != nil {
		return model.StatSnapshot{}, err
	}
	if len(rows) == 0 {
		return model.StatSnapshot{}, fmt.Errorf("subject %d: %w", subjectID, model.ErrNotFound)
	}
	return rows[0], nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count, nil
}
