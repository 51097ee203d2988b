// Package refresh serves a subject's recent window of snapshots, refetching
// it from the subject's event log when the cached window is stale.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/boxscore/internal/adapters/repository"
	"github.com/okian/boxscore/internal/domain/freshness"
	"github.com/okian/boxscore/internal/domain/model"
	"github.com/okian/boxscore/pkg/logger"
	"github.com/okian/boxscore/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// DefaultWindowSize is used when a caller passes a non-positive window size.
const DefaultWindowSize = 5

// LogSource serves a subject's most recent events.
type LogSource interface {
	FetchRecentLog(ctx context.Context, subjectID int64, limit int) ([]model.LogEntry, error)
}

// Refresher implements the TTL-gated recent window read.
type Refresher struct {
	source     LogSource
	store      repository.Store
	policy     *freshness.Policy
	windowSize int
	logger     logger.Logger
	group      singleflight.Group
}

// New creates a Refresher.
func New(source LogSource, store repository.Store, policy *freshness.Policy, opts ...Option) *Refresher {
	r := &Refresher{
		source:     source,
		store:      store,
		policy:     policy,
		windowSize: DefaultWindowSize,
		logger:     logger.Get().Named("refresh"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetRecentWindow returns up to windowSize snapshots for subjectID, newest
// first. A stale window is refetched once; if that fails the cached rows
// are returned as they are. Only store read failures are returned as errors.
func (r *Refresher) GetRecentWindow(ctx context.Context, subjectID int64, windowSize int) ([]model.StatSnapshot, error) {
	if windowSize <= 0 {
		windowSize = r.windowSize
	}
	cached, err := r.store.Window(ctx, subjectID, windowSize)
	if err != nil {
		return nil, fmt.Errorf("read window for subject %d: %w", subjectID, err)
	}
	if r.policy.Check(cached, windowSize) == freshness.Fresh {
		metrics.RecordRecentWindow("fresh")
		return cached, nil
	}

	key := fmt.Sprintf("%d/%d", subjectID, windowSize)
	_, err, _ = r.group.Do(key, func() (any, error) {
		return nil, r.refresh(ctx, subjectID, windowSize)
	})
	if err != nil {
		metrics.RecordRecentWindow("refresh_failed")
		r.logger.Warn(ctx, "recent window refresh failed, serving cached rows",
			logger.Int64("subject", subjectID),
			logger.Int("cached", len(cached)),
			logger.Error(err))
		return cached, nil
	}

	updated, err := r.store.Window(ctx, subjectID, windowSize)
	if err != nil {
		r.logger.Warn(ctx, "re-reading refreshed window failed", logger.Int64("subject", subjectID), logger.Error(err))
		return cached, nil
	}
	metrics.RecordRecentWindow("refreshed")
	return updated, nil
}

// refresh fetches the subject's log and merges each entry onto the stored
// row inside a single store update.
func (r *Refresher) refresh(ctx context.Context, subjectID int64, limit int) error {
	entries, err := r.source.FetchRecentLog(ctx, subjectID, limit)
	if err != nil {
		return err
	}

	var errs []error
	for _, e := range entries {
		key := model.Key{SubjectID: subjectID, EventID: e.EventID}
		if !repository.ValidKey(key) {
			continue
		}
		_, err := r.store.Update(ctx, key, func(prev model.StatSnapshot, _ bool) model.StatSnapshot {
			return Merge(prev, subjectID, e)
		})
		if err != nil {
			metrics.RecordSnapshot("refresh", "error")
			errs = append(errs, err)
			continue
		}
		metrics.RecordSnapshot("refresh", "written")
	}
	if len(errs) > 0 && len(errs) == len(entries) {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		r.logger.Warn(ctx, "recent window entry not stored", logger.Int64("subject", subjectID), logger.Error(err))
	}
	return nil
}

// Merge overlays a log entry onto base, which is the stored snapshot or the
// zero value. Values the log carries win; values it lacks keep what base had.
func Merge(base model.StatSnapshot, subjectID int64, e model.LogEntry) model.StatSnapshot {
	base.SubjectID = subjectID
	base.EventID = e.EventID
	if !e.Date.IsZero() {
		base.EventDate = e.Date
	}
	team, opponent := ParseMatchup(e.Matchup)
	if team != "" {
		base.TeamAbbr = team
	}
	if opponent != "" {
		base.OpponentAbbr = opponent
	}
	overlay(&base.Stats, e.Stats)

	switch e.Result {
	case model.ResultWin, model.ResultLoss:
		base.Result = e.Result
	default:
		if base.Result == "" {
			base.Result = model.ResultFor(base.TeamScore, base.OpponentScore)
		}
	}
	return base
}

// ParseMatchup splits "LAL vs. BOS" or "LAL @ BOS" into the subject's team
// (first token) and the opponent (last token).
func ParseMatchup(matchup string) (team, opponent string) {
	fields := strings.Fields(matchup)
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields) == 1 {
		return fields[0], ""
	}
	return fields[0], fields[len(fields)-1]
}

func overlay(dst *model.Stats, src model.Stats) {
	pick := func(d **float64, s *float64) {
		if s != nil {
			*d = s
		}
	}
	pick(&dst.Minutes, src.Minutes)
	pick(&dst.Points, src.Points)
	pick(&dst.Rebounds, src.Rebounds)
	pick(&dst.Assists, src.Assists)
	pick(&dst.Steals, src.Steals)
	pick(&dst.Blocks, src.Blocks)
	pick(&dst.Turnovers, src.Turnovers)
	pick(&dst.FGM, src.FGM)
	pick(&dst.FGA, src.FGA)
	pick(&dst.FGPct, src.FGPct)
	pick(&dst.FG3M, src.FG3M)
	pick(&dst.FG3A, src.FG3A)
	pick(&dst.FG3Pct, src.FG3Pct)
	pick(&dst.FTM, src.FTM)
	pick(&dst.FTA, src.FTA)
	pick(&dst.FTPct, src.FTPct)
}
