package builder

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/WipBox/internal/models"
	"github.com/BearBump/WipBox/internal/services/history"
	"github.com/pkg/errors"
)

const (
	defaultConcurrency = 4
	defaultPartitions  = 8
	defaultFlushSize   = 1_000_000
)

// Sink accepts self-contained batches of snapshots. The aggregator never calls
// sinks concurrently.
type Sink interface {
	WriteSnapshots(ctx context.Context, kind models.UnitKind, snaps []models.WipSnapshot) error
}

type AggregatorOptions struct {
	SnapshotHours []int
	Concurrency   int
	Partitions    int
	FlushSize     int
}

// Input is one build run over many units of the same kind.
type Input struct {
	RunID    string
	Now      time.Time
	Events   []*models.CheckpointEvent
	Statuses []*models.HistoricalStatusEvent
	Prior    map[string]models.PriorFlags
}

type UnitFailure struct {
	SerialNumber string
	Err          error
}

type Result struct {
	RunID     string
	Kind      models.UnitKind
	Units     int
	Snapshots int
	Failed    []UnitFailure
	// Table is filled by Aggregate only.
	Table []models.WipSnapshot
}

type Aggregator struct {
	x    *history.Expander
	opts AggregatorOptions
}

func NewAggregator(x *history.Expander, opts AggregatorOptions) (*Aggregator, error) {
	if x == nil {
		return nil, errors.New("expander is required")
	}
	if len(opts.SnapshotHours) == 0 {
		opts.SnapshotHours = []int{history.DefaultFixedHour}
	}
	if len(opts.SnapshotHours) > 1 {
		if _, err := x.ExpandShifts(history.UnitInput{}, opts.SnapshotHours); err != nil {
			return nil, err
		}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Partitions <= 0 {
		opts.Partitions = defaultPartitions
	}
	if opts.FlushSize <= 0 {
		opts.FlushSize = defaultFlushSize
	}
	return &Aggregator{x: x, opts: opts}, nil
}

func (a *Aggregator) Kind() models.UnitKind { return a.x.Context().Kind }

// Aggregate builds the whole WIP table in memory, ordered by serial number and
// snapshot date.
func (a *Aggregator) Aggregate(ctx context.Context, in Input) (Result, error) {
	var table []models.WipSnapshot
	res, err := a.Stream(ctx, in, sinkFunc(func(_ context.Context, _ models.UnitKind, snaps []models.WipSnapshot) error {
		table = append(table, snaps...)
		return nil
	}))
	if err != nil {
		return res, err
	}
	sort.SliceStable(table, func(i, j int) bool {
		if table[i].SerialNumber != table[j].SerialNumber {
			return table[i].SerialNumber < table[j].SerialNumber
		}
		return table[i].SnapshotDate.Before(table[j].SnapshotDate)
	})
	res.Table = table
	return res, nil
}

// Stream expands every unit and hands flushed partitions to sink. Per-unit
// failures are collected in the result; only a sink error stops the run.
func (a *Aggregator) Stream(ctx context.Context, in Input, sink Sink) (Result, error) {
	kind := a.Kind()
	res := Result{RunID: in.RunID, Kind: kind}

	events := GroupEventsBySerial(in.Events)
	statuses := GroupStatusesBySerial(in.Statuses)
	res.Units = len(events)

	parts := make([][]string, a.opts.Partitions)
	for _, sn := range sortedKeys(events) {
		i := PartitionOf(sn, a.opts.Partitions)
		parts[i] = append(parts[i], sn)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		sinkMu  sync.Mutex
		resMu   sync.Mutex
		sinkErr error
	)
	flush := func(batch []models.WipSnapshot) error {
		if len(batch) == 0 {
			return nil
		}
		sinkMu.Lock()
		defer sinkMu.Unlock()
		if sinkErr != nil {
			return sinkErr
		}
		if err := sink.WriteSnapshots(ctx, kind, batch); err != nil {
			sinkErr = errors.Wrap(err, "write snapshots")
			cancel()
			return sinkErr
		}
		resMu.Lock()
		res.Snapshots += len(batch)
		resMu.Unlock()
		return nil
	}

	sem := make(chan struct{}, a.opts.Concurrency)
	var wg sync.WaitGroup
	for _, serials := range parts {
		if len(serials) == 0 {
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		serialsCopy := serials
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()

			buf := make([]models.WipSnapshot, 0, min(a.opts.FlushSize, 1024))
			for _, sn := range serialsCopy {
				if ctx.Err() != nil {
					return
				}
				snaps, err := a.expandUnit(sn, in, events[sn], statuses[sn])
				if err != nil {
					slog.Error("expand unit", "serial_number", sn, "kind", string(kind), "error", err.Error())
					resMu.Lock()
					res.Failed = append(res.Failed, UnitFailure{SerialNumber: sn, Err: err})
					resMu.Unlock()
					continue
				}
				for _, s := range snaps {
					buf = append(buf, a.enrich(s, in))
					if len(buf) >= a.opts.FlushSize {
						if flush(buf) != nil {
							return
						}
						buf = buf[:0]
					}
				}
			}
			_ = flush(buf)
		}()
	}
	wg.Wait()

	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].SerialNumber < res.Failed[j].SerialNumber })
	if sinkErr != nil {
		return res, sinkErr
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// expandUnit isolates one unit: both an error and a panic only fail that unit.
func (a *Aggregator) expandUnit(sn string, in Input, events []*models.CheckpointEvent, statuses []*models.HistoricalStatusEvent) (out []models.WipSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			out = nil
		}
	}()

	ui := history.UnitInput{
		Events:   events,
		Statuses: statuses,
		Prior:    in.Prior[sn],
		Now:      in.Now,
	}
	if len(a.opts.SnapshotHours) == 1 && a.opts.SnapshotHours[0] == a.x.FixedHour() {
		return a.x.Expand(ui)
	}
	return a.x.ExpandShifts(ui, a.opts.SnapshotHours)
}

func (a *Aggregator) enrich(s models.WipSnapshot, in Input) models.WipSnapshot {
	if s.Area == "" {
		s.Area = a.x.Context().AreaOf(s.CheckpointID)
	}
	s.RunID = in.RunID
	s.ETLTime = in.Now
	return s
}

// PartitionOf maps a serial number to one of n partitions.
func PartitionOf(serial string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(serial))
	return int(h.Sum32() % uint32(n))
}

func GroupEventsBySerial(events []*models.CheckpointEvent) map[string][]*models.CheckpointEvent {
	out := make(map[string][]*models.CheckpointEvent)
	for i, e := range events {
		if e == nil {
			// nil rows land in a group of their own so the unit fails validation
			key := fmt.Sprintf("<nil #%d>", i)
			out[key] = append(out[key], nil)
			continue
		}
		out[e.SerialNumber] = append(out[e.SerialNumber], e)
	}
	return out
}

func GroupStatusesBySerial(statuses []*models.HistoricalStatusEvent) map[string][]*models.HistoricalStatusEvent {
	out := make(map[string][]*models.HistoricalStatusEvent)
	for _, st := range statuses {
		if st == nil {
			continue
		}
		out[st.SerialNumber] = append(out[st.SerialNumber], st)
	}
	return out
}

func sortedKeys(m map[string][]*models.CheckpointEvent) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type sinkFunc func(ctx context.Context, kind models.UnitKind, snaps []models.WipSnapshot) error

func (f sinkFunc) WriteSnapshots(ctx context.Context, kind models.UnitKind, snaps []models.WipSnapshot) error {
	return f(ctx, kind, snaps)
}
