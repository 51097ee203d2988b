// Package service assembles the caching and reconciliation components and
// exposes the read operations consumed by downstream layers.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/boxscore/internal/adapters/repository"
	"github.com/okian/boxscore/internal/adapters/repository/sqlite"
	"github.com/okian/boxscore/internal/adapters/scheduler"
	"github.com/okian/boxscore/internal/adapters/upstream"
	"github.com/okian/boxscore/internal/adapters/warmup"
	"github.com/okian/boxscore/internal/config"
	"github.com/okian/boxscore/internal/domain/freshness"
	"github.com/okian/boxscore/internal/domain/ledger"
	"github.com/okian/boxscore/internal/domain/liveblend"
	"github.com/okian/boxscore/internal/domain/model"
	"github.com/okian/boxscore/internal/domain/reconcile"
	"github.com/okian/boxscore/internal/domain/refresh"
	"github.com/okian/boxscore/pkg/logger"
	"github.com/okian/boxscore/pkg/metrics"
)

const (
	runnerShutdownTimeout = 10 * time.Second
	warmupName            = "team-differentials"
)

// Warm-up states reported by GetStats.
const (
	warmupPending  = "pending"
	warmupOK       = "ok"
	warmupGaveUp   = "gave_up"
	warmupDisabled = "disabled"
)

// Upstream is every external collaborator the service consumes.
type Upstream interface {
	reconcile.Source
	refresh.LogSource
	liveblend.LiveSource
	liveblend.ScheduleSource
	Warmup(ctx context.Context) error
}

// EventFilter selects events for ListEvents. From and To are inclusive
// calendar days; StatusUnknown matches every status.
type EventFilter struct {
	From   time.Time
	To     time.Time
	Status model.Status
}

// Service wires the store, ledger, reconciler, on-demand refresh and live
// blend together.
type Service struct {
	mu sync.RWMutex

	cfg      *config.Config
	logger   logger.Logger
	now      func() time.Time
	upstream Upstream

	// Storage
	db     *sqlite.DB
	store  repository.Store
	ledger ledger.Ledger

	// Components
	reconciler *reconcile.Reconciler
	refresher  *refresh.Refresher
	blend      *liveblend.Blend
	runner     *scheduler.Runner

	// State
	started      bool
	ownsStorage  bool
	warmupState  atomic.Value
	warmupCancel context.CancelFunc
	warmupDone   chan struct{}
}

// New constructs a Service. Components are built by Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.warmupState.Store(warmupPending)
	return s
}

// Start builds every component. The reconciliation runner is returned by
// Runner and must be served by the caller; the upstream warm-up runs in the
// background and never delays Start.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	cfg := s.cfg
	loc := cfg.Location()

	s.logger.Info(ctx, "starting boxscore service...", logger.String("store", cfg.StoreDriver))

	if s.upstream == nil {
		s.upstream = upstream.New(
			upstream.WithBaseURL(cfg.UpstreamBaseURL),
			upstream.WithLiveFeedURL(cfg.LiveFeedURL),
			upstream.WithScheduleURL(cfg.ScheduleURL),
			upstream.WithTimeout(cfg.UpstreamTimeout()),
			upstream.WithMinInterval(cfg.UpstreamMinInterval()),
			upstream.WithLocation(loc),
			upstream.WithClock(s.now),
			upstream.WithLogger(s.logger.Named("upstream")),
		)
	}

	if s.store == nil || s.ledger == nil {
		if err := s.openStorage(ctx); err != nil {
			return err
		}
	}

	policy := freshness.New(cfg.RecentWindowTTL(), freshness.WithClock(s.now))
	s.reconciler = reconcile.New(s.upstream, s.store, s.ledger,
		reconcile.WithLogger(s.logger.Named("reconciler")),
		reconcile.WithClock(s.now),
	)
	s.refresher = refresh.New(s.upstream, s.store, policy,
		refresh.WithWindowSize(cfg.RecentWindowSize),
		refresh.WithLogger(s.logger.Named("refresh")),
	)
	schedule := liveblend.NewScheduleCache(s.upstream, cfg.ScheduleTTL(),
		liveblend.WithCacheClock(s.now),
		liveblend.WithCacheLogger(s.logger.Named("schedule")),
	)
	s.blend = liveblend.New(schedule, s.upstream,
		liveblend.WithLocation(loc),
		liveblend.WithClock(s.now),
		liveblend.WithUpcomingDays(cfg.UpcomingDays),
		liveblend.WithLogger(s.logger.Named("liveblend")),
	)
	s.runner = scheduler.New(s.reconciler.RunSweep,
		scheduler.WithName("reconciler"),
		scheduler.WithInterval(cfg.SweepInterval()),
		scheduler.WithRunOnStart(true),
		scheduler.WithLogger(s.logger.Named("scheduler")),
	)

	s.startWarmup()

	s.started = true
	s.logger.Info(ctx, "boxscore service started",
		logger.Duration("sweep_interval", cfg.SweepInterval()),
		logger.Int("window_size", cfg.RecentWindowSize),
		logger.Duration("window_ttl", cfg.RecentWindowTTL()),
		logger.Duration("schedule_ttl", cfg.ScheduleTTL()),
		logger.String("timezone", loc.String()),
	)
	return nil
}

func (s *Service) openStorage(ctx context.Context) error {
	switch s.cfg.StoreDriver {
	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, s.cfg.SQLitePath, sqlite.WithClock(s.now))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStart, err)
		}
		s.db = db
		s.store = db.Snapshots()
		s.ledger = db.Ledger()
	default:
		s.store = repository.NewMemoryStore(repository.WithClock(s.now))
		s.ledger = ledger.NewInMemory(ledger.WithClock(s.now))
	}
	s.ownsStorage = true
	return nil
}

// startWarmup launches the retrying warm-up call. It is detached from the
// Start context and cancelled by Stop.
func (s *Service) startWarmup() {
	attempts := s.cfg.WarmupAttempts
	if attempts <= 0 {
		s.warmupState.Store(warmupDisabled)
		return
	}
	s.warmupState.Store(warmupPending)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.warmupCancel = cancel
	s.warmupDone = done

	fn := s.upstream.Warmup
	backoff := warmup.LinearBackoff(s.cfg.WarmupBackoff())
	go func() {
		defer close(done)
		if warmup.Run(ctx, warmupName, fn, attempts, backoff) {
			s.warmupState.Store(warmupOK)
			return
		}
		s.warmupState.Store(warmupGaveUp)
	}()
}

// Stop shuts the runner down, cancels warm-up and closes owned storage.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), runnerShutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping boxscore service...")

	if err := s.runner.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "runner shutdown incomplete", logger.Error(err))
	}
	if s.warmupCancel != nil {
		s.warmupCancel()
		<-s.warmupDone
		s.warmupCancel = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn(ctx, "closing database failed", logger.Error(err))
		}
		s.db = nil
	}
	if s.ownsStorage {
		s.store, s.ledger = nil, nil
		s.ownsStorage = false
	}

	s.started = false
	s.logger.Info(ctx, "boxscore service stopped")
}

// Started reports whether Start completed and Stop has not been called.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Runner returns the reconciliation runner for supervision, or nil before Start.
func (s *Service) Runner() *scheduler.Runner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runner
}

// Config returns the active configuration.
func (s *Service) Config() *config.Config { return s.cfg }

func (s *Service) components() (*reconcile.Reconciler, *refresh.Refresher, *liveblend.Blend, repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, nil, nil, ErrNotStarted
	}
	return s.reconciler, s.refresher, s.blend, s.store, nil
}

// RunSweep runs one reconciliation sweep synchronously. Overlapping calls,
// including a sweep started by the runner, return immediately.
func (s *Service) RunSweep(ctx context.Context) {
	rec, _, _, _, err := s.components()
	if err != nil {
		return
	}
	rec.RunSweep(ctx)
}

// LastSweep returns the report of the most recent completed sweep.
func (s *Service) LastSweep() reconcile.Report {
	rec, _, _, _, err := s.components()
	if err != nil {
		return reconcile.Report{}
	}
	return rec.LastReport()
}

// GetRecentWindow returns the subject's recent snapshots, newest first,
// refreshing them from upstream when the cached window is stale.
func (s *Service) GetRecentWindow(ctx context.Context, subjectID int64) ([]model.StatSnapshot, error) {
	_, ref, _, _, err := s.components()
	if err != nil {
		return nil, err
	}
	return ref.GetRecentWindow(ctx, subjectID, s.cfg.RecentWindowSize)
}

// GetLatestSnapshot returns the subject's newest snapshot or model.ErrNotFound.
func (s *Service) GetLatestSnapshot(ctx context.Context, subjectID int64) (model.StatSnapshot, error) {
	_, _, _, store, err := s.components()
	if err != nil {
		return model.StatSnapshot{}, err
	}
	return store.Latest(ctx, subjectID)
}

// TodaysGames returns today's events from the live feed.
func (s *Service) TodaysGames(ctx context.Context) []model.Event {
	_, _, blend, _, err := s.components()
	if err != nil {
		return []model.Event{}
	}
	return blend.TodaysGames(ctx)
}

// GamesForDate returns the events on day.
func (s *Service) GamesForDate(ctx context.Context, day time.Time) []model.Event {
	_, _, blend, _, err := s.components()
	if err != nil {
		return []model.Event{}
	}
	return blend.GamesForDate(ctx, day)
}

// GamesForRange returns the events between start and end inclusive.
func (s *Service) GamesForRange(ctx context.Context, start, end time.Time) []model.Event {
	_, _, blend, _, err := s.components()
	if err != nil {
		return []model.Event{}
	}
	return blend.GamesForRange(ctx, start, end)
}

// GamesForWeek returns the Sunday-to-Saturday week containing day.
func (s *Service) GamesForWeek(ctx context.Context, day time.Time) []model.Event {
	_, _, blend, _, err := s.components()
	if err != nil {
		return []model.Event{}
	}
	return blend.GamesForWeek(ctx, day)
}

// UpcomingGames returns events from today through the configured horizon
// that have not completed.
func (s *Service) UpcomingGames(ctx context.Context) []model.Event {
	_, _, blend, _, err := s.components()
	if err != nil {
		return []model.Event{}
	}
	return blend.UpcomingGames(ctx)
}

// ListEvents returns the events matching f. A zero From means today and a
// zero To means From plus the upcoming horizon.
func (s *Service) ListEvents(ctx context.Context, f EventFilter) []model.Event {
	_, _, blend, _, err := s.components()
	if err != nil {
		return []model.Event{}
	}
	from, to := f.From, f.To
	if from.IsZero() {
		from = blend.Today()
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, s.cfg.UpcomingDays)
	}
	events := blend.GamesForRange(ctx, from, to)
	if f.Status == model.StatusUnknown {
		return events
	}
	out := events[:0]
	for _, e := range events {
		if e.Status == f.Status {
			out = append(out, e)
		}
	}
	return out
}

// GetEvent looks an event up in today's live feed first, then in the
// schedule. Absent events yield model.ErrNotFound.
func (s *Service) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	_, _, blend, _, err := s.components()
	if err != nil {
		return model.Event{}, err
	}
	for _, e := range blend.TodaysGames(ctx) {
		if e.ID == id {
			return e, nil
		}
	}
	events, err := blend.Schedule().Events(ctx)
	if err != nil {
		s.logger.Warn(ctx, "schedule unavailable for event lookup", logger.Int64("event", id), logger.Error(err))
	}
	for _, e := range events {
		if e.ID == id {
			return e, nil
		}
	}
	return model.Event{}, fmt.Errorf("event %d: %w", id, model.ErrNotFound)
}

// GetStats returns service statistics for the operational endpoint and
// refreshes the matching gauges.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":      s.started,
		"store_driver": s.cfg.StoreDriver,
		"warmup":       s.warmupState.Load(),
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	if n, err := s.store.Count(ctx); err == nil {
		stats["snapshots"] = n
		metrics.UpdateSnapshotCount(n)
	}
	if n, err := s.ledger.Size(ctx); err == nil {
		stats["ledger_entries"] = n
		metrics.UpdateLedgerSize(n)
	}

	last := s.reconciler.LastReport()
	stats["sweeps"] = s.reconciler.Sweeps()
	stats["sweep_running"] = s.reconciler.Running()
	stats["runner_runs"] = s.runner.Runs()
	stats["runner_skipped"] = s.runner.Skipped()
	stats["sweep_interval_ms"] = s.runner.Interval().Milliseconds()
	if last.RunID != "" {
		stats["last_sweep"] = map[string]any{
			"run_id":            last.RunID,
			"started_at":        last.StartedAt,
			"duration_ms":       last.Duration.Milliseconds(),
			"outcome":           last.Outcome,
			"events_seen":       last.EventsSeen,
			"events_ingested":   last.EventsIngested,
			"events_failed":     last.EventsFailed,
			"snapshots_written": last.SnapshotsWritten,
		}
	}

	schedule := s.blend.Schedule()
	stats["schedule_events"] = schedule.Len()
	if at := schedule.RefreshedAt(); !at.IsZero() {
		stats["schedule_refreshed_at"] = at
	}
	return stats
}
