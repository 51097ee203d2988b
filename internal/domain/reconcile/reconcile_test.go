package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/boxscore/internal/adapters/repository"
	"github.com/okian/boxscore/internal/domain/ledger"
	"github.com/okian/boxscore/internal/domain/model"
	"github.com/okian/boxscore/internal/domain/reconcile"
	"github.com/okian/boxscore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const (
	teamA = int64(1610612747)
	teamB = int64(1610612738)
)

type fakeSource struct {
	mu          sync.Mutex
	finals      []model.FinalEvent
	finalsErr   error
	details     map[int64]model.EventDetail
	detailErr   map[int64]error
	detailCalls map[int64]int
	block       chan struct{}
}

func (f *fakeSource) FetchFinalEvents(context.Context) ([]model.FinalEvent, error) {
	if f.block != nil {
		<-f.block
	}
	return f.finals, f.finalsErr
}

func (f *fakeSource) FetchEventDetail(_ context.Context, id int64) (model.EventDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls[id]++
	if err := f.detailErr[id]; err != nil {
		return model.EventDetail{}, err
	}
	return f.details[id], nil
}

func (f *fakeSource) calls(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls[id]
}

// countingStore counts inserts on top of a memory store. beforeInsert runs
// ahead of each insert, standing in for a concurrent writer.
type countingStore struct {
	*repository.MemoryStore
	inserts      atomic.Int32
	fail         bool
	beforeInsert func(snap model.StatSnapshot)
}

func (s *countingStore) InsertIfAbsent(ctx context.Context, snap model.StatSnapshot) error {
	s.inserts.Add(1)
	if s.fail {
		return errors.New("disk full")
	}
	if s.beforeInsert != nil {
		s.beforeInsert(snap)
	}
	return s.MemoryStore.InsertIfAbsent(ctx, snap)
}

func detail(id int64, sides ...model.SideLine) model.EventDetail {
	return model.EventDetail{
		EventID: id,
		Subjects: []model.SubjectLine{
			{SubjectID: 2544, SubjectName: "LeBron James", TeamID: model.Int64(teamA), TeamAbbr: "LAL", Stats: model.Stats{Points: model.Float(28)}},
			{SubjectID: 1628369, SubjectName: "Jayson Tatum", TeamID: model.Int64(teamB), TeamAbbr: "BOS", Stats: model.Stats{Points: model.Float(30)}},
		},
		Sides: sides,
	}
}

func TestRunSweep(t *testing.T) {
	Convey("Given final event E123 with sides A(101) and B(98) and two subjects", t, func() {
		ctx := context.Background()
		eventDate := model.Day(2025, time.January, 15)
		src := &fakeSource{
			finals: []model.FinalEvent{{ID: 123, Date: eventDate, StatusText: "Final"}},
			details: map[int64]model.EventDetail{123: detail(123,
				model.SideLine{TeamID: teamA, Abbreviation: "LAL", Points: model.Float(101)},
				model.SideLine{TeamID: teamB, Abbreviation: "BOS", Points: model.Float(98)},
			)},
			detailErr:   map[int64]error{},
			detailCalls: map[int64]int{},
		}
		store := &countingStore{MemoryStore: repository.NewMemoryStore()}
		l := ledger.NewInMemory()
		r := reconcile.New(src, store, l)

		Convey("When a sweep runs", func() {
			r.RunSweep(ctx)

			Convey("Then each subject's snapshot carries its own and the opposing score", func() {
				lebron, err := store.Get(ctx, model.Key{SubjectID: 2544, EventID: 123})
				So(err, ShouldBeNil)
				So(*lebron.TeamScore, ShouldEqual, 101)
				So(*lebron.OpponentScore, ShouldEqual, 98)
				So(lebron.OpponentAbbr, ShouldEqual, "BOS")
				So(lebron.Result, ShouldEqual, model.ResultWin)
				So(lebron.EventDate, ShouldEqual, eventDate)
				So(lebron.SubjectName, ShouldEqual, "LeBron James")

				tatum, err := store.Get(ctx, model.Key{SubjectID: 1628369, EventID: 123})
				So(err, ShouldBeNil)
				So(*tatum.TeamScore, ShouldEqual, 98)
				So(*tatum.OpponentScore, ShouldEqual, 101)
				So(tatum.OpponentAbbr, ShouldEqual, "LAL")
				So(tatum.Result, ShouldEqual, model.ResultLoss)
			})

			Convey("Then the event is ledgered", func() {
				entry, err := l.Get(ctx, 123)
				So(err, ShouldBeNil)
				So(entry.EventDate, ShouldEqual, eventDate)

				rep := r.LastReport()
				So(rep.RunID, ShouldNotBeEmpty)
				So(rep.Outcome, ShouldEqual, reconcile.OutcomeCompleted)
				So(rep.EventsIngested, ShouldEqual, 1)
				So(rep.SnapshotsWritten, ShouldEqual, 2)
			})

			Convey("And a second sweep runs over the same upstream", func() {
				before, _ := store.Get(ctx, model.Key{SubjectID: 2544, EventID: 123})
				writes := store.inserts.Load()

				r.RunSweep(ctx)

				Convey("Then no additional writes happen", func() {
					So(store.inserts.Load(), ShouldEqual, writes)
					So(src.calls(123), ShouldEqual, 1)

					after, _ := store.Get(ctx, model.Key{SubjectID: 2544, EventID: 123})
					So(after, ShouldResemble, before)

					size, _ := l.Size(ctx)
					So(size, ShouldEqual, 1)
					n, _ := store.Count(ctx)
					So(n, ShouldEqual, 2)
					So(r.LastReport().EventsLedgered, ShouldEqual, 1)
					So(r.Sweeps(), ShouldEqual, 2)
				})
			})
		})

		Convey("When a snapshot already exists but the event is not ledgered", func() {
			_, _ = store.MemoryStore.Upsert(ctx, model.StatSnapshot{SubjectID: 2544, EventID: 123, Stats: model.Stats{Points: model.Float(1)}})
			r.RunSweep(ctx)

			Convey("Then the existing row is left alone and the event is ledgered", func() {
				row, _ := store.Get(ctx, model.Key{SubjectID: 2544, EventID: 123})
				So(*row.Points, ShouldEqual, 1)
				So(r.LastReport().SnapshotsWritten, ShouldEqual, 1)
				So(r.LastReport().SnapshotsSkipped, ShouldEqual, 1)
				has, _ := l.Has(ctx, 123)
				So(has, ShouldBeTrue)
			})
		})

		Convey("When another writer stores a subject's row while the sweep is running", func() {
			store.beforeInsert = func(snap model.StatSnapshot) {
				if snap.SubjectID != 2544 {
					return
				}
				_, _ = store.MemoryStore.Update(ctx, snap.Key(), func(prev model.StatSnapshot, _ bool) model.StatSnapshot {
					prev.Stats.Points = model.Float(27)
					prev.OpponentAbbr = "BOS"
					return prev
				})
			}
			r.RunSweep(ctx)

			Convey("Then the concurrent row wins and the event is still ledgered", func() {
				row, err := store.Get(ctx, model.Key{SubjectID: 2544, EventID: 123})
				So(err, ShouldBeNil)
				So(*row.Points, ShouldEqual, 27)
				So(row.TeamScore, ShouldBeNil)

				rep := r.LastReport()
				So(rep.SnapshotsSkipped, ShouldEqual, 1)
				So(rep.SnapshotsWritten, ShouldEqual, 1)
				So(rep.EventsFailed, ShouldEqual, 0)
				has, _ := l.Has(ctx, 123)
				So(has, ShouldBeTrue)
			})
		})

		Convey("When the payload has three sides", func() {
			src.details[123] = detail(123,
				model.SideLine{TeamID: teamA, Points: model.Float(101)},
				model.SideLine{TeamID: teamB, Points: model.Float(98)},
				model.SideLine{TeamID: 99, Points: model.Float(5)},
			)
			r.RunSweep(ctx)

			Convey("Then scores stay unset on both snapshots", func() {
				for _, id := range []int64{2544, 1628369} {
					row, err := store.Get(ctx, model.Key{SubjectID: id, EventID: 123})
					So(err, ShouldBeNil)
					So(row.TeamScore, ShouldBeNil)
					So(row.OpponentScore, ShouldBeNil)
					So(row.Result, ShouldEqual, "")
				}
				has, _ := l.Has(ctx, 123)
				So(has, ShouldBeTrue)
			})
		})

		Convey("When the payload has no sides", func() {
			src.details[123] = detail(123)
			r.RunSweep(ctx)

			Convey("Then scores stay unset", func() {
				row, _ := store.Get(ctx, model.Key{SubjectID: 2544, EventID: 123})
				So(row.TeamScore, ShouldBeNil)
				So(row.OpponentScore, ShouldBeNil)
			})
		})

		Convey("When one event's detail fails", func() {
			src.finals = append([]model.FinalEvent{{ID: 777, Date: eventDate}}, src.finals...)
			src.detailErr[777] = model.ErrUpstreamUnavailable
			r.RunSweep(ctx)

			Convey("Then other events are still ingested and the failed one is retried later", func() {
				has, _ := l.Has(ctx, 123)
				So(has, ShouldBeTrue)
				has, _ = l.Has(ctx, 777)
				So(has, ShouldBeFalse)
				So(r.LastReport().EventsFailed, ShouldEqual, 1)

				delete(src.detailErr, 777)
				src.details[777] = model.EventDetail{EventID: 777}
				r.RunSweep(ctx)
				has, _ = l.Has(ctx, 777)
				So(has, ShouldBeTrue)
			})
		})

		Convey("When a subject line has no id", func() {
			d := src.details[123]
			d.Subjects = append(d.Subjects, model.SubjectLine{SubjectID: 0, SubjectName: "ghost"})
			src.details[123] = d
			r.RunSweep(ctx)

			Convey("Then it is skipped and the event is still ledgered", func() {
				n, _ := store.Count(ctx)
				So(n, ShouldEqual, 2)
				has, _ := l.Has(ctx, 123)
				So(has, ShouldBeTrue)
			})
		})

		Convey("When the store rejects writes", func() {
			store.fail = true
			r.RunSweep(ctx)

			Convey("Then the event is not ledgered", func() {
				has, _ := l.Has(ctx, 123)
				So(has, ShouldBeFalse)
				So(r.LastReport().EventsFailed, ShouldEqual, 1)
			})
		})

		Convey("When listing final events fails", func() {
			src.finalsErr = model.ErrUpstreamUnavailable
			r.RunSweep(ctx)

			So(r.LastReport().Outcome, ShouldEqual, reconcile.OutcomeFailed)
			size, _ := l.Size(ctx)
			So(size, ShouldEqual, 0)
		})

		Convey("When a sweep is started while another is running", func() {
			src.block = make(chan struct{})
			started := make(chan struct{})
			finished := make(chan struct{})
			go func() {
				close(started)
				r.RunSweep(ctx)
				close(finished)
			}()
			<-started
			for !r.Running() {
				time.Sleep(time.Millisecond)
			}

			r.RunSweep(ctx)
			overlapReturned := r.Running()
			close(src.block)
			<-finished

			Convey("Then the second call returns without sweeping", func() {
				So(overlapReturned, ShouldBeTrue)
				So(r.Sweeps(), ShouldEqual, 1)
				So(src.calls(123), ShouldEqual, 1)
			})
		})
	})
}
