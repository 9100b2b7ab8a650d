package history

import (
	"sort"
	"time"

	"github.com/BearBump/WipBox/internal/models"
	"github.com/pkg/errors"
)

var ErrInvalidSnapshotHours = errors.New("snapshot hours must be distinct values in [0, 23]")

// SentinelPolicy picks the reference timestamp of a "previously X" flag when the
// unit has no matching lifecycle event.
type SentinelPolicy struct {
	// NoEventOffset is added to now when no event was ever seen; a future
	// sentinel keeps the flag false.
	NoEventOffset time.Duration
	// PriorFlagOffset is added to now when a prior run already flagged the
	// unit; a past sentinel keeps the flag true.
	PriorFlagOffset time.Duration
}

func DefaultSentinelPolicy() SentinelPolicy {
	return SentinelPolicy{
		NoEventOffset:   10 * 24 * time.Hour,
		PriorFlagOffset: -500 * 24 * time.Hour,
	}
}

type Options struct {
	FixedHour         int
	DaysBack          int
	ShipmentDayPolicy ShipmentDayPolicy
	Sentinels         SentinelPolicy
}

func DefaultOptions() Options {
	return Options{
		FixedHour:         DefaultFixedHour,
		DaysBack:          120,
		ShipmentDayPolicy: ShipmentDayExtendBeforeToday,
		Sentinels:         DefaultSentinelPolicy(),
	}
}

// UnitInput is everything known about one unit for one reconstruction.
type UnitInput struct {
	Events   []*models.CheckpointEvent
	Statuses []*models.HistoricalStatusEvent
	Prior    models.PriorFlags
	Now      time.Time
}

// Expander rebuilds the daily WIP history of single units. It holds no mutable
// state and is safe for concurrent use.
type Expander struct {
	uc   UnitContext
	opts Options
}

func NewExpander(uc UnitContext, opts Options) (*Expander, error) {
	if err := uc.Validate(); err != nil {
		return nil, err
	}
	if opts.FixedHour < 0 || opts.FixedHour > 23 {
		return nil, errors.Wrapf(ErrInvalidSnapshotHours, "fixed hour %d", opts.FixedHour)
	}
	if opts.ShipmentDayPolicy == "" {
		opts.ShipmentDayPolicy = ShipmentDayExtendBeforeToday
	}
	if opts.Sentinels == (SentinelPolicy{}) {
		opts.Sentinels = DefaultSentinelPolicy()
	}
	return &Expander{uc: uc, opts: opts}, nil
}

func (x *Expander) Context() UnitContext { return x.uc }
func (x *Expander) FixedHour() int       { return x.opts.FixedHour }

// Expand emits one snapshot per day at the configured fixed hour.
func (x *Expander) Expand(in UnitInput) ([]models.WipSnapshot, error) {
	if err := ValidateEvents(in.Events); err != nil {
		return nil, err
	}
	return x.expandAt(in, x.opts.FixedHour, false), nil
}

// ExpandShifts runs the reconstruction once per snapshot hour, each with its own
// boundaries, and merges the results in snapshot order. Snapshot times later
// than now are not emitted.
func (x *Expander) ExpandShifts(in UnitInput, hours []int) ([]models.WipSnapshot, error) {
	if err := validateHours(hours); err != nil {
		return nil, err
	}
	if err := ValidateEvents(in.Events); err != nil {
		return nil, err
	}
	var out []models.WipSnapshot
	for _, h := range hours {
		out = append(out, x.expandAt(in, h, true)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SnapshotDate.Before(out[j].SnapshotDate)
	})
	return out, nil
}

func (x *Expander) expandAt(in UnitInput, hour int, skipUnreached bool) []models.WipSnapshot {
	critical := make([]*models.CheckpointEvent, 0, len(in.Events))
	for _, e := range in.Events {
		if x.uc.IsCritical(e.CheckpointID) {
			critical = append(critical, e)
		}
	}

	b, ok := ResolveBoundaries(critical, in.Now, BoundaryOptions{
		FixedHour:             hour,
		DaysBack:              x.opts.DaysBack,
		ShipmentCheckpointIDs: x.uc.ShipmentCheckpointIDs,
		ShipmentDayPolicy:     x.opts.ShipmentDayPolicy,
	})
	if !ok {
		return nil
	}

	sort.SliceStable(critical, func(i, j int) bool {
		return critical[i].TransactionTimestamp.After(critical[j].TransactionTimestamp)
	})

	packedRef := x.reference(in.Events, x.uc.ShipmentCheckpointIDs, in.Prior.Packed, in.Now)
	voidRef := x.reference(in.Events, x.uc.VoidCheckpointIDs, in.Prior.Void, in.Now)
	reworkRef := x.reference(in.Events, x.uc.ReworkCheckpointIDs, in.Prior.Rework, in.Now)
	statuses := NewStatusHistory(in.Statuses)

	var out []models.WipSnapshot
	for day := b.Lower; !day.After(b.Upper); day = day.AddDate(0, 0, 1) {
		if skipUnreached && day.After(in.Now) {
			continue
		}
		loc := locationAt(critical, day)
		if loc == nil {
			continue
		}

		s := newSnapshot(loc, day)
		s.Kind = x.uc.Kind
		if st, ok := statuses.Resolve(day); ok {
			st := st
			s.FactoryStatus = &st
		}
		s.DwellTimeCalendarHours = WorkingHoursDelta(loc.TransactionTimestamp, day, false)
		s.DwellTimeWorkingHours = WorkingHoursDelta(loc.TransactionTimestamp, day, true)
		s.Area = x.uc.AreaOf(loc.CheckpointID)
		s.PackedIsLastFlag = b.PackedIsLast
		s.PackedPreviouslyFlag = packedRef.Before(loc.TransactionTimestamp)
		s.VoidPreviouslyFlag = voidRef.Before(loc.TransactionTimestamp)
		s.ReworkPreviouslyFlag = reworkRef.Before(loc.TransactionTimestamp)
		out = append(out, s)
	}
	return out
}

// reference is the earliest transaction of the given checkpoints, or a sentinel.
func (x *Expander) reference(events []*models.CheckpointEvent, ids map[int]struct{}, prior bool, now time.Time) time.Time {
	var ref time.Time
	for _, e := range events {
		if !has(ids, e.CheckpointID) {
			continue
		}
		if ref.IsZero() || e.TransactionTimestamp.Before(ref) {
			ref = e.TransactionTimestamp
		}
	}
	if ref.IsZero() {
		ref = now.Add(x.opts.Sentinels.NoEventOffset)
	}
	if prior {
		if p := now.Add(x.opts.Sentinels.PriorFlagOffset); p.Before(ref) {
			ref = p
		}
	}
	return ref
}

// locationAt returns the latest event at or before t; events are newest first.
func locationAt(newestFirst []*models.CheckpointEvent, t time.Time) *models.CheckpointEvent {
	for _, e := range newestFirst {
		if !e.TransactionTimestamp.After(t) {
			return e
		}
	}
	return nil
}

func newSnapshot(e *models.CheckpointEvent, day time.Time) models.WipSnapshot {
	return models.WipSnapshot{
		SerialNumber:         e.SerialNumber,
		CheckpointID:         e.CheckpointID,
		CheckpointName:       e.CheckpointName,
		TransactionTimestamp: e.TransactionTimestamp,
		TransactionSourceID:  e.TransactionSourceID,
		StockCode:            e.StockCode,
		SKU:                  e.SKU,
		AuxiliaryField:       e.AuxiliaryField,
		OrderType:            cloneString(e.OrderType),
		FactoryStatus:        cloneString(e.FactoryStatus),
		Site:                 e.Site,
		Building:             e.Building,
		Kind:                 e.Kind,
		SnapshotDate:         day,
	}
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func validateHours(hours []int) error {
	if len(hours) == 0 {
		return ErrInvalidSnapshotHours
	}
	seen := make(map[int]struct{}, len(hours))
	for _, h := range hours {
		if h < 0 || h > 23 {
			return errors.Wrapf(ErrInvalidSnapshotHours, "hour %d", h)
		}
		if _, dup := seen[h]; dup {
			return errors.Wrapf(ErrInvalidSnapshotHours, "duplicate hour %d", h)
		}
		seen[h] = struct{}{}
	}
	return nil
}
