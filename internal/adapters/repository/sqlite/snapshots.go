package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/boxscore/internal/adapters/repository"
	"github.com/okian/boxscore/internal/domain/model"
	"github.com/okian/boxscore/pkg/metrics"
)

// snapshotColumns lists stat_snapshots columns in scan and bind order.
var snapshotColumns = []string{ //nolint:gochecknoglobals // fixed column order
	"subject_id", "event_id", "subject_name", "event_date",
	"team_id", "team_abbr", "opponent_abbr", "team_score", "opponent_score", "result",
	"minutes", "points", "rebounds", "assists", "steals", "blocks", "turnovers",
	"fgm", "fga", "fg_pct", "fg3m", "fg3a", "fg3_pct", "ftm", "fta", "ft_pct",
	"created_at", "updated_at",
}

var (
	selectSnapshot = "SELECT " + strings.Join(snapshotColumns, ", ") + " FROM stat_snapshots" //nolint:gochecknoglobals // derived query
	upsertSnapshot = buildUpsert()                                                           //nolint:gochecknoglobals // derived query
)

// buildUpsert replaces every column except the key and created_at on conflict.
func buildUpsert() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(snapshotColumns)), ", ")
	sets := make([]string, 0, len(snapshotColumns))
	for _, c := range snapshotColumns {
		switch c {
		case "subject_id", "event_id", "created_at":
			continue
		}
		sets = append(sets, c+" = excluded."+c)
	}
	return "INSERT INTO stat_snapshots (" + strings.Join(snapshotColumns, ", ") + ") VALUES (" + placeholders +
		") ON CONFLICT (subject_id, event_id) DO UPDATE SET " + strings.Join(sets, ", ")
}

// SnapshotStore implements repository.Store on SQLite.
type SnapshotStore struct {
	d *DB
}

var _ repository.Store = (*SnapshotStore)(nil)

func (s *SnapshotStore) Exists(ctx context.Context, key model.Key) (bool, error) {
	var one int
	err := s.d.db.QueryRowContext(ctx,
		"SELECT 1 FROM stat_snapshots WHERE subject_id = ? AND event_id = ?",
		key.SubjectID, key.EventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %d/%d: %w", key.SubjectID, key.EventID, err)
	}
	return true, nil
}

func (s *SnapshotStore) Get(ctx context.Context, key model.Key) (model.StatSnapshot, error) {
	row := s.d.db.QueryRowContext(ctx, selectSnapshot+" WHERE subject_id = ? AND event_id = ?", key.SubjectID, key.EventID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StatSnapshot{}, fmt.Errorf("snapshot %d/%d: %w", key.SubjectID, key.EventID, model.ErrNotFound)
	}
	if err != nil {
		return model.StatSnapshot{}, fmt.Errorf("get %d/%d: %w", key.SubjectID, key.EventID, err)
	}
	return snap, nil
}

func (s *SnapshotStore) Upsert(ctx context.Context, snap model.StatSnapshot) (bool, error) {
	return s.Update(ctx, snap.Key(), func(model.StatSnapshot, bool) model.StatSnapshot { return snap })
}

func (s *SnapshotStore) InsertIfAbsent(ctx context.Context, snap model.StatSnapshot) error {
	key := snap.Key()
	if !repository.ValidKey(key) {
		return fmt.Errorf("%w: %d/%d", repository.ErrInvalidKey, key.SubjectID, key.EventID)
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, exists, err := getTx(ctx, tx, key)
		if err != nil {
			return err
		}
		if exists {
			return model.ErrConflictIgnored
		}
		return s.putTx(ctx, tx, snap)
	})
	if err != nil {
		return fmt.Errorf("insert %d/%d: %w", key.SubjectID, key.EventID, err)
	}
	s.updateCount(ctx)
	return nil
}

func (s *SnapshotStore) Update(ctx context.Context, key model.Key, fn repository.UpdateFunc) (bool, error) {
	if !repository.ValidKey(key) {
		return false, fmt.Errorf("%w: %d/%d", repository.ErrInvalidKey, key.SubjectID, key.EventID)
	}

	var created bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		prev, exists, err := getTx(ctx, tx, key)
		if err != nil {
			return err
		}
		row := fn(prev, exists)
		row.SubjectID, row.EventID = key.SubjectID, key.EventID
		created = !exists
		return s.putTx(ctx, tx, row)
	})
	if err != nil {
		return false, fmt.Errorf("upsert %d/%d: %w", key.SubjectID, key.EventID, err)
	}
	if created {
		s.updateCount(ctx)
	}
	return created, nil
}

// inTx runs fn in a transaction while holding the DB write lock, so a read
// inside fn and the write that follows it cannot interleave with another writer.
func (s *SnapshotStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	tx, err := s.d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func getTx(ctx context.Context, tx *sql.Tx, key model.Key) (model.StatSnapshot, bool, error) {
	row := tx.QueryRowContext(ctx, selectSnapshot+" WHERE subject_id = ? AND event_id = ?", key.SubjectID, key.EventID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StatSnapshot{}, false, nil
	}
	if err != nil {
		return model.StatSnapshot{}, false, err
	}
	return snap, true, nil
}

// putTx writes snap; on conflict the stored created_at is kept.
func (s *SnapshotStore) putTx(ctx context.Context, tx *sql.Tx, snap model.StatSnapshot) error {
	now := s.d.now().UTC()
	snap.CreatedAt = now
	snap.UpdatedAt = now
	_, err := tx.ExecContext(ctx, upsertSnapshot, snapshotArgs(snap)...)
	return err
}

func (s *SnapshotStore) updateCount(ctx context.Context) {
	if n, err := s.count(ctx); err == nil {
		metrics.UpdateSnapshotCount(n)
	}
}

func (s *SnapshotStore) Window(ctx context.Context, subjectID int64, n int) ([]model.StatSnapshot, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", repository.ErrInvalidLimit, n)
	}
	rows, err := s.d.db.QueryContext(ctx, selectSnapshot+
		" WHERE subject_id = ? ORDER BY (event_date = '') ASC, event_date DESC, event_id DESC LIMIT ?",
		subjectID, n)
	if err != nil {
		return nil, fmt.Errorf("window %d: %w", subjectID, err)
	}
	defer rows.Close()

	out := make([]model.StatSnapshot, 0, n)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan window %d: %w", subjectID, err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("window %d: %w", subjectID, err)
	}
	return out, nil
}

func (s *SnapshotStore) Latest(ctx context.Context, subjectID int64) (model.StatSnapshot, error) {
	rows, err := s.Window(ctx, subjectID, 1)
	if err != nil {
		return model.StatSnapshot{}, err
	}
	if len(rows) == 0 {
		return model.StatSnapshot{}, fmt.Errorf("subject %d: %w", subjectID, model.ErrNotFound)
	}
	return rows[0], nil
}

func (s *SnapshotStore) Count(ctx context.Context) (int, error) {
	return s.count(ctx)
}

func (s *SnapshotStore) count(ctx context.Context) (int, error) {
	var n int
	if err := s.d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stat_snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

func snapshotArgs(s model.StatSnapshot) []any {
	return []any{
		s.SubjectID, s.EventID, s.SubjectName, formatDate(s.EventDate),
		nullInt(s.TeamID), s.TeamAbbr, s.OpponentAbbr, nullFloat(s.TeamScore), nullFloat(s.OpponentScore), s.Result,
		nullFloat(s.Minutes), nullFloat(s.Points), nullFloat(s.Rebounds), nullFloat(s.Assists),
		nullFloat(s.Steals), nullFloat(s.Blocks), nullFloat(s.Turnovers),
		nullFloat(s.FGM), nullFloat(s.FGA), nullFloat(s.FGPct),
		nullFloat(s.FG3M), nullFloat(s.FG3A), nullFloat(s.FG3Pct),
		nullFloat(s.FTM), nullFloat(s.FTA), nullFloat(s.FTPct),
		s.CreatedAt.UnixNano(), s.UpdatedAt.UnixNano(),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(sc scanner) (model.StatSnapshot, error) {
	var (
		s                    model.StatSnapshot
		eventDate            string
		teamID               sql.NullInt64
		teamScore, oppScore  sql.NullFloat64
		stats                [16]sql.NullFloat64
		createdAt, updatedAt int64
	)
	dest := []any{
		&s.SubjectID, &s.EventID, &s.SubjectName, &eventDate,
		&teamID, &s.TeamAbbr, &s.OpponentAbbr, &teamScore, &oppScore, &s.Result,
	}
	for i := range stats {
		dest = append(dest, &stats[i])
	}
	dest = append(dest, &createdAt, &updatedAt)
	if err := sc.Scan(dest...); err != nil {
		return model.StatSnapshot{}, err
	}

	s.EventDate = parseDate(eventDate)
	s.TeamID = intPtr(teamID)
	s.TeamScore = floatPtr(teamScore)
	s.OpponentScore = floatPtr(oppScore)
	s.Stats = model.Stats{
		Minutes: floatPtr(stats[0]), Points: floatPtr(stats[1]), Rebounds: floatPtr(stats[2]),
		Assists: floatPtr(stats[3]), Steals: floatPtr(stats[4]), Blocks: floatPtr(stats[5]),
		Turnovers: floatPtr(stats[6]), FGM: floatPtr(stats[7]), FGA: floatPtr(stats[8]),
		FGPct: floatPtr(stats[9]), FG3M: floatPtr(stats[10]), FG3A: floatPtr(stats[11]),
		FG3Pct: floatPtr(stats[12]), FTM: floatPtr(stats[13]), FTA: floatPtr(stats[14]),
		FTPct: floatPtr(stats[15]),
	}
	s.CreatedAt = fromNanos(createdAt)
	s.UpdatedAt = fromNanos(updatedAt)
	return s, nil
}
