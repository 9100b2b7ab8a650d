package builder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/WipBox/internal/models"
	"github.com/pkg/errors"
)

// Repository is the extraction and loading side of a build.
type Repository interface {
	ListCheckpointEvents(ctx context.Context, kind models.UnitKind, serials []string, since time.Time) ([]*models.CheckpointEvent, error)
	ListStatusEvents(ctx context.Context, kind models.UnitKind, serials []string, since time.Time) ([]*models.HistoricalStatusEvent, error)
	ListChangedUnits(ctx context.Context, kind models.UnitKind, after time.Time) ([]string, error)
	LastBuildCursor(ctx context.Context, kind models.UnitKind) (time.Time, bool, error)
	SaveBuildCursor(ctx context.Context, kind models.UnitKind, runID string, cursor time.Time) error
	ListPriorFlags(ctx context.Context, kind models.UnitKind, serials []string) (map[string]models.PriorFlags, error)
	DeleteSupersededSnapshots(ctx context.Context, c models.SnapshotCleanup) (models.RemovedSnapshots, error)
	DeleteSnapshotsBefore(ctx context.Context, before time.Time) (models.RemovedSnapshots, error)
}

// Evictor drops derived read state (cached pages, summaries) of removed
// snapshots. An empty kind means any kind.
type Evictor interface {
	EvictSnapshots(ctx context.Context, kind models.UnitKind, removed models.RemovedSnapshots) error
}

type Runner struct {
	repo  Repository
	aggs  []*Aggregator
	sinks []Sink
	evict Evictor

	clock    Clock
	ids      IDGenerator
	schedule *Schedule

	fullRefresh bool
	extractDays int
	retention   time.Duration

	runMu     sync.Mutex
	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastRunUnixNano     atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalRuns           atomic.Int64
	totalUnits          atomic.Int64
	totalSnapshots      atomic.Int64
	totalFailedUnits    atomic.Int64
	totalErrors         atomic.Int64
	consecutiveFailures atomic.Int64
	inFlight            atomic.Int64
	lastMu              sync.Mutex
	lastRunID           string
	lastError           string
}

func NewRunner(repo Repository, aggs []*Aggregator, sinks ...Sink) *Runner {
	return &Runner{
		repo:              repo,
		aggs:              aggs,
		sinks:             sinks,
		clock:             RealClock{},
		ids:               UUIDGenerator{},
		schedule:          NewSchedule(DefaultScheduleConfig()),
		fullRefresh:       true,
		retention:         400 * 24 * time.Hour,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

// WithSettings: fullRefresh rebuilds every unit; otherwise only units with
// events newer than the loaded snapshots are rebuilt. extractDays limits the
// extraction window (0 loads the whole history).
func (r *Runner) WithSettings(fullRefresh bool, extractDays int, retention time.Duration) *Runner {
	r.fullRefresh = fullRefresh
	if extractDays > 0 {
		r.extractDays = extractDays
	}
	if retention > 0 {
		r.retention = retention
	}
	return r
}

func (r *Runner) WithSchedule(cfg ScheduleConfig) *Runner {
	r.schedule = NewSchedule(cfg)
	return r
}

func (r *Runner) WithEvictor(e Evictor) *Runner {
	r.evict = e
	return r
}

func (r *Runner) WithClock(c Clock, ids IDGenerator) *Runner {
	if c != nil {
		r.clock = c
	}
	if ids != nil {
		r.ids = ids
	}
	return r
}

// Trigger forces an immediate build (best-effort, non-blocking).
func (r *Runner) Trigger() {
	r.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt        time.Time  `json:"startedAt"`
	LastRunAt        *time.Time `json:"lastRunAt,omitempty"`
	LastTriggerAt    *time.Time `json:"lastTriggerAt,omitempty"`
	LastRunID        string     `json:"lastRunId,omitempty"`
	TotalRuns        int64      `json:"totalRuns"`
	TotalUnits       int64      `json:"totalUnits"`
	TotalSnapshots   int64      `json:"totalSnapshots"`
	TotalFailedUnits int64      `json:"totalFailedUnits"`
	TotalErrors      int64      `json:"totalErrors"`
	InFlight         int64      `json:"inFlight"`
	LastError        string     `json:"lastError,omitempty"`
}

func (r *Runner) Stats() Stats {
	st := Stats{
		StartedAt:        time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalRuns:        r.totalRuns.Load(),
		TotalUnits:       r.totalUnits.Load(),
		TotalSnapshots:   r.totalSnapshots.Load(),
		TotalFailedUnits: r.totalFailedUnits.Load(),
		TotalErrors:      r.totalErrors.Load(),
		InFlight:         r.inFlight.Load(),
	}
	if n := r.lastRunUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastRunAt = &t
	}
	if n := r.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	r.lastMu.Lock()
	st.LastRunID = r.lastRunID
	st.LastError = r.lastError
	r.lastMu.Unlock()
	return st
}

func (r *Runner) Run(ctx context.Context) error {
	t := time.NewTimer(r.schedule.NextDelay(0))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		case <-r.triggerCh:
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
		}
		_, _ = r.RunOnce(ctx)
		t.Reset(r.schedule.NextDelay(int(r.consecutiveFailures.Load())))
	}
}

// RunOnce builds every configured unit kind once. Failed units are reported in
// the results; an extraction or sink failure aborts the run.
func (r *Runner) RunOnce(ctx context.Context) ([]Result, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	r.inFlight.Add(1)
	defer r.inFlight.Add(-1)

	now := r.clock.Now().UTC()
	runID := r.ids.New()
	r.lastRunUnixNano.Store(now.UnixNano())
	r.totalRuns.Add(1)
	r.lastMu.Lock()
	r.lastRunID = runID
	r.lastMu.Unlock()

	started := time.Now()
	out := make([]Result, 0, len(r.aggs))
	for _, agg := range r.aggs {
		res, err := r.buildKind(ctx, agg, runID, now)
		r.totalUnits.Add(int64(res.Units))
		r.totalSnapshots.Add(int64(res.Snapshots))
		r.totalFailedUnits.Add(int64(len(res.Failed)))
		if err != nil {
			r.fail(err)
			slog.Error("wip build failed", "run_id", runID, "kind", string(agg.Kind()), "error", err.Error())
			return out, err
		}
		slog.Info("wip build finished",
			"run_id", runID,
			"kind", string(res.Kind),
			"units", res.Units,
			"snapshots", res.Snapshots,
			"failed_units", len(res.Failed),
			"duration", time.Since(started).String(),
		)
		out = append(out, res)
	}
	r.consecutiveFailures.Store(0)
	return out, nil
}

func (r *Runner) buildKind(ctx context.Context, agg *Aggregator, runID string, now time.Time) (Result, error) {
	kind := agg.Kind()
	empty := Result{RunID: runID, Kind: kind}

	var since time.Time
	if r.extractDays > 0 {
		since = now.AddDate(0, 0, -r.extractDays)
	}

	// Курсор двигается только после успешной сборки: упавший прогон
	// перестроит те же юниты ещё раз.
	cursor, hasCursor, err := r.repo.LastBuildCursor(ctx, kind)
	if err != nil {
		return empty, err
	}

	var serials []string
	if !r.fullRefresh && hasCursor {
		serials, err = r.repo.ListChangedUnits(ctx, kind, cursor)
		if err != nil {
			return empty, err
		}
		if len(serials) == 0 {
			slog.Info("no changed units", "kind", string(kind), "cursor", cursor)
			return empty, nil
		}
	}

	events, err := r.repo.ListCheckpointEvents(ctx, kind, serials, since)
	if err != nil {
		return empty, err
	}
	statuses, err := r.repo.ListStatusEvents(ctx, kind, serials, since)
	if err != nil {
		return empty, err
	}
	var prior map[string]models.PriorFlags
	if !since.IsZero() {
		// Старые события за окном не выгружаются, флаги берём из прошлых снимков.
		prior, err = r.repo.ListPriorFlags(ctx, kind, serials)
		if err != nil {
			return empty, err
		}
	}

	res, err := agg.Stream(ctx, Input{
		RunID:    runID,
		Now:      now,
		Events:   events,
		Statuses: statuses,
		Prior:    prior,
	}, multiSink(r.sinks))
	if err != nil {
		return res, err
	}

	// Старые строки удаляем, только когда новые уже записаны во все синки.
	cleanup := models.SnapshotCleanup{Kind: kind, Serials: serials, RunID: runID}
	for _, f := range res.Failed {
		cleanup.Keep = append(cleanup.Keep, f.SerialNumber)
	}
	removed, err := r.repo.DeleteSupersededSnapshots(ctx, cleanup)
	if err != nil {
		return res, err
	}
	r.evictRemoved(ctx, kind, removed)

	next := cursor
	for _, e := range events {
		if e.TransactionTimestamp.After(next) {
			next = e.TransactionTimestamp
		}
	}
	if !next.IsZero() {
		if err := r.repo.SaveBuildCursor(ctx, kind, runID, next.UTC()); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (r *Runner) evictRemoved(ctx context.Context, kind models.UnitKind, removed models.RemovedSnapshots) {
	if r.evict == nil || removed.Rows == 0 {
		return
	}
	// Ошибка сброса кэша сборку не валит, ключи доживут до TTL.
	if err := r.evict.EvictSnapshots(ctx, kind, removed); err != nil {
		slog.Warn("evict removed snapshots failed", "kind", string(kind), "serials", len(removed.Serials), "error", err.Error())
	}
}

// Purge drops snapshots older than the retention period.
func (r *Runner) Purge(ctx context.Context) (int64, error) {
	before := r.clock.Now().UTC().Add(-r.retention)
	removed, err := r.repo.DeleteSnapshotsBefore(ctx, before)
	if err != nil {
		r.fail(err)
		return 0, err
	}
	r.evictRemoved(ctx, "", removed)
	slog.Info("old snapshots purged", "before", before, "deleted", removed.Rows)
	return removed.Rows, nil
}

func (r *Runner) fail(err error) {
	r.totalErrors.Add(1)
	r.consecutiveFailures.Add(1)
	r.lastMu.Lock()
	r.lastError = err.Error()
	r.lastMu.Unlock()
}

type multiSink []Sink

func (m multiSink) WriteSnapshots(ctx context.Context, kind models.UnitKind, snaps []models.WipSnapshot) error {
	for _, s := range m {
		if err := s.WriteSnapshots(ctx, kind, snaps); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
