// Package reconcile ingests completed events into the snapshot store.
//
// A sweep lists the events currently final upstream, skips those already in
// the ledger, fetches each remaining event's detail and writes one snapshot
// per subject that does not have one yet. An event is ledgered once all of
// its subject lines have been handled, so later sweeps never fetch it again.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/boxscore/internal/adapters/repository"
	"github.com/okian/boxscore/internal/domain/ledger"
	"github.com/okian/boxscore/internal/domain/model"
	"github.com/okian/boxscore/internal/domain/scoring"
	"github.com/okian/boxscore/pkg/logger"
	"github.com/okian/boxscore/pkg/metrics"
)

// Source lists completed events and serves their detail.
type Source interface {
	FetchFinalEvents(ctx context.Context) ([]model.FinalEvent, error)
	FetchEventDetail(ctx context.Context, eventID int64) (model.EventDetail, error)
}

// Sweep outcomes, also used as metric labels.
const (
	OutcomeCompleted = "completed"
	OutcomeOverlap   = "skipped_overlap"
	OutcomeFailed    = "failed"
)

// Report summarizes one sweep.
type Report struct {
	RunID            string
	StartedAt        time.Time
	Duration         time.Duration
	Outcome          string
	EventsSeen       int
	EventsLedgered   int // already ledgered before this sweep
	EventsIngested   int // ledgered by this sweep
	EventsFailed     int
	SnapshotsWritten int
	SnapshotsSkipped int
}

// Reconciler runs sweeps. Sweeps never overlap: a sweep started while
// another is running returns immediately.
type Reconciler struct {
	source Source
	store  repository.Store
	ledger ledger.Ledger
	logger logger.Logger
	now    func() time.Time

	running atomic.Bool
	mu      sync.RWMutex
	last    Report
	total   atomic.Int64
}

// New creates a Reconciler.
func New(source Source, store repository.Store, l ledger.Ledger, opts ...Option) *Reconciler {
	r := &Reconciler{
		source: source,
		store:  store,
		ledger: l,
		logger: logger.Get().Named("reconciler"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSweep performs one reconciliation pass. Failures are logged and
// counted; nothing is returned to the caller.
func (r *Reconciler) RunSweep(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		metrics.RecordSweep(OutcomeOverlap)
		r.logger.Debug(ctx, "sweep already running, skipping")
		return
	}
	defer r.running.Store(false)

	rep := Report{RunID: uuid.NewString(), StartedAt: r.now()}
	log := r.logger.With(logger.String("run", rep.RunID))
	start := time.Now()

	r.sweep(ctx, log, &rep)

	rep.Duration = time.Since(start)
	metrics.RecordSweep(rep.Outcome)
	metrics.ObserveSweepDuration(float64(rep.Duration.Milliseconds()))
	r.total.Add(1)

	r.mu.Lock()
	r.last = rep
	r.mu.Unlock()

	log.Info(ctx, "sweep finished",
		logger.String("outcome", rep.Outcome),
		logger.Int("events", rep.EventsSeen),
		logger.Int("ingested", rep.EventsIngested),
		logger.Int("already_ledgered", rep.EventsLedgered),
		logger.Int("failed", rep.EventsFailed),
		logger.Int("snapshots_written", rep.SnapshotsWritten),
		logger.Int("snapshots_skipped", rep.SnapshotsSkipped),
		logger.Duration("duration", rep.Duration))
}

func (r *Reconciler) sweep(ctx context.Context, log logger.Logger, rep *Report) {
	finals, err := r.source.FetchFinalEvents(ctx)
	if err != nil {
		rep.Outcome = OutcomeFailed
		log.Warn(ctx, "failed to list final events", logger.Error(err))
		return
	}
	rep.Outcome = OutcomeCompleted
	rep.EventsSeen = len(finals)

	for _, ev := range finals {
		if ctx.Err() != nil {
			log.Warn(ctx, "sweep interrupted", logger.Error(ctx.Err()))
			return
		}
		r.reconcileEvent(ctx, log.With(logger.Int64("event", ev.ID)), ev, rep)
	}

	if size, err := r.ledger.Size(ctx); err == nil {
		metrics.UpdateLedgerSize(size)
	}
}

// reconcileEvent handles one final event. Errors stay local to the event.
func (r *Reconciler) reconcileEvent(ctx context.Context, log logger.Logger, ev model.FinalEvent, rep *Report) {
	done, err := r.ledger.Has(ctx, ev.ID)
	if err != nil {
		rep.EventsFailed++
		metrics.RecordEvent("failed")
		log.Warn(ctx, "ledger lookup failed", logger.Error(err))
		return
	}
	if done {
		rep.EventsLedgered++
		metrics.RecordEvent("already_ledgered")
		return
	}

	detail, err := r.source.FetchEventDetail(ctx, ev.ID)
	if err != nil {
		rep.EventsFailed++
		metrics.RecordEvent("failed")
		log.Warn(ctx, "failed to fetch event detail", logger.Error(err))
		return
	}

	lookup, paired := scoring.Pair(detail.Sides)
	if !paired {
		log.Debug(ctx, "event sides did not pair, scores left unset", logger.Int("sides", len(detail.Sides)))
	}

	writeFailed := false
	for _, line := range detail.Subjects {
		key := model.Key{SubjectID: line.SubjectID, EventID: ev.ID}
		if !repository.ValidKey(key) {
			rep.SnapshotsSkipped++
			metrics.RecordSnapshot("reconcile", "invalid")
			continue
		}
		err := r.store.InsertIfAbsent(ctx, buildSnapshot(ev, line, lookup, paired))
		if errors.Is(err, model.ErrConflictIgnored) {
			rep.SnapshotsSkipped++
			metrics.RecordSnapshot("reconcile", "exists")
			continue
		}
		if err != nil {
			writeFailed = true
			metrics.RecordSnapshot("reconcile", "error")
			log.Warn(ctx, "snapshot insert failed", logger.Int64("subject", line.SubjectID), logger.Error(err))
			continue
		}
		rep.SnapshotsWritten++
		metrics.RecordSnapshot("reconcile", "written")
	}

	if writeFailed {
		rep.EventsFailed++
		metrics.RecordEvent("store_failed")
		log.Warn(ctx, "event left unledgered after store failures")
		return
	}

	if _, err := r.ledger.Record(ctx, model.LedgerEntry{EventID: ev.ID, EventDate: ev.Date, ProcessedAt: r.now().UTC()}); err != nil {
		rep.EventsFailed++
		metrics.RecordEvent("failed")
		log.Warn(ctx, "failed to ledger event", logger.Error(err))
		return
	}
	rep.EventsIngested++
	metrics.RecordEvent("ingested")
}

// buildSnapshot assembles a subject's snapshot. Scores, the opponent and the
// result are only set when the event's two sides paired and the subject's
// team is one of them.
func buildSnapshot(ev model.FinalEvent, line model.SubjectLine, lookup scoring.Lookup, paired bool) model.StatSnapshot {
	snap := model.StatSnapshot{
		SubjectID:   line.SubjectID,
		EventID:     ev.ID,
		SubjectName: line.SubjectName,
		EventDate:   ev.Date,
		TeamID:      line.TeamID,
		TeamAbbr:    line.TeamAbbr,
		Stats:       line.Stats,
	}
	if paired && line.TeamID != nil {
		if team, opp, ok := lookup.For(*line.TeamID); ok {
			snap.TeamScore = team.Points
			snap.OpponentScore = opp.Points
			if team.Abbreviation != "" {
				snap.TeamAbbr = team.Abbreviation
			}
			snap.OpponentAbbr = opp.Abbreviation
		}
	}
	snap.Result = model.ResultFor(snap.TeamScore, snap.OpponentScore)
	return snap
}

// LastReport returns the report of the most recent finished sweep.
func (r *Reconciler) LastReport() Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Running reports whether a sweep is in progress.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// Sweeps returns the number of sweeps run to completion.
func (r *Reconciler) Sweeps() int64 {
	return r.total.Load()
}
