package history

import (
	"time"

	"github.com/BearBump/WipBox/internal/models"
)

// ShipmentDayPolicy decides when a shipped unit's last snapshot moves to the
// day after its shipment scan.
type ShipmentDayPolicy string

const (
	// ShipmentDayExtendBeforeToday extends when the scan happened after the fixed
	// hour on a day before today.
	ShipmentDayExtendBeforeToday ShipmentDayPolicy = "extend-before-today"
	ShipmentDayNever             ShipmentDayPolicy = "never"
	// ShipmentDayAlwaysAfterHour extends whenever the scan happened after the fixed hour.
	ShipmentDayAlwaysAfterHour ShipmentDayPolicy = "always-after-hour"
)

type BoundaryOptions struct {
	FixedHour             int
	DaysBack              int // <= 0 disables the historical clamp
	ShipmentCheckpointIDs map[int]struct{}
	ShipmentDayPolicy     ShipmentDayPolicy
}

type Boundaries struct {
	Lower        time.Time
	Upper        time.Time
	PackedIsLast bool

	MinTimestamp time.Time
	MaxTimestamp time.Time
	Latest       *models.CheckpointEvent
}

// ResolveBoundaries computes the first and last snapshot times of a unit from its
// critical checkpoint events. ok is false when the unit must not produce any
// snapshot: there are no critical events, or the unit shipped before the
// historical threshold.
func ResolveBoundaries(critical []*models.CheckpointEvent, now time.Time, opts BoundaryOptions) (b Boundaries, ok bool) {
	if len(critical) == 0 {
		return Boundaries{}, false
	}

	// latest: first event carrying the max timestamp, in input order
	for _, e := range critical {
		ts := e.TransactionTimestamp
		if b.Latest == nil || ts.After(b.MaxTimestamp) {
			b.Latest = e
			b.MaxTimestamp = ts
		}
		if b.MinTimestamp.IsZero() || ts.Before(b.MinTimestamp) {
			b.MinTimestamp = ts
		}
	}

	today := NormalizeToFixedHour(now, opts.FixedHour)
	switch {
	case has(opts.ShipmentCheckpointIDs, b.Latest.CheckpointID):
		b.Upper = NormalizeToFixedHour(b.MaxTimestamp, opts.FixedHour)
		if extendShipmentDay(b.MaxTimestamp, today, opts) {
			b.Upper = b.Upper.AddDate(0, 0, 1)
		}
		b.PackedIsLast = true
	case today.After(b.MaxTimestamp):
		b.Upper = today
	default:
		b.Upper = NormalizeToFixedHour(b.MaxTimestamp, opts.FixedHour)
	}

	b.Lower = NormalizeToFixedHour(b.MinTimestamp, opts.FixedHour)

	if opts.DaysBack > 0 {
		threshold := now.AddDate(0, 0, -opts.DaysBack)
		if b.MinTimestamp.Before(threshold) {
			// Очень старые и уже отгруженные юниты не восстанавливаем.
			if b.PackedIsLast && b.MaxTimestamp.Before(threshold) {
				return Boundaries{}, false
			}
			b.Lower = NormalizeToFixedHour(threshold, opts.FixedHour)
		}
	}
	return b, true
}

func extendShipmentDay(maxTS, today time.Time, opts BoundaryOptions) bool {
	afterHour := timeOfDay(maxTS) > time.Duration(opts.FixedHour)*time.Hour
	switch opts.ShipmentDayPolicy {
	case ShipmentDayNever:
		return false
	case ShipmentDayAlwaysAfterHour:
		return afterHour
	default:
		return afterHour && dateBefore(maxTS, today)
	}
}

func dateBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
