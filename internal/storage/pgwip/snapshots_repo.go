package pgwip

import (
	"context"
	"time"

	"github.com/BearBump/WipBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

var snapshotColumns = []string{
	"serial_number", "kind", "checkpoint_id", "checkpoint_name", "transaction_ts", "transaction_source_id",
	"stock_code", "sku", "auxiliary_field", "order_type", "factory_status", "site", "building",
	"snapshot_date", "dwell_calendar_hours", "dwell_working_hours", "area",
	"packed_is_last", "packed_previously", "void_previously", "rework_previously",
	"run_id", "etl_time",
}

// WriteSnapshots bulk-loads snapshots with COPY, chunkSize rows per statement,
// all chunks in one transaction.
func (s *Storage) WriteSnapshots(ctx context.Context, kind models.UnitKind, snaps []models.WipSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for start := 0; start < len(snaps); start += s.chunkSize {
		end := min(start+s.chunkSize, len(snaps))
		chunk := snaps[start:end]

		_, err := tx.CopyFrom(ctx, pgx.Identifier{"wip_snapshots"}, snapshotColumns,
			pgx.CopyFromSlice(len(chunk), func(i int) ([]any, error) {
				w := chunk[i]
				return []any{
					w.SerialNumber, string(kind), w.CheckpointID, w.CheckpointName, w.TransactionTimestamp.UTC(), w.TransactionSourceID,
					w.StockCode, w.SKU, w.AuxiliaryField, w.OrderType, w.FactoryStatus, w.Site, w.Building,
					w.SnapshotDate.UTC(), w.DwellTimeCalendarHours, w.DwellTimeWorkingHours, nullable(w.Area),
					w.PackedIsLastFlag, w.PackedPreviouslyFlag, w.VoidPreviouslyFlag, w.ReworkPreviouslyFlag,
					w.RunID, w.ETLTime.UTC(),
				}, nil
			}))
		if err != nil {
			return errors.Wrap(err, "copy snapshots")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// DeleteSupersededSnapshots removes rows replaced by the run c.RunID. It is
// called only after every sink accepted the run, so a failed build leaves the
// previous history in place.
func (s *Storage) DeleteSupersededSnapshots(ctx context.Context, c models.SnapshotCleanup) (models.RemovedSnapshots, error) {
	keep := c.Keep
	if keep == nil {
		keep = []string{}
	}
	return s.deleteSnapshots(ctx, `
WITH d AS (
  DELETE FROM wip_snapshots
  WHERE kind = $1
    AND ($2::text[] IS NULL OR serial_number = ANY($2))
    AND run_id <> $3
    AND NOT (serial_number = ANY($4::text[]))
  RETURNING serial_number, snapshot_date
)
`+removedSummary, string(c.Kind), c.Serials, c.RunID, keep)
}

func (s *Storage) DeleteSnapshotsBefore(ctx context.Context, before time.Time) (models.RemovedSnapshots, error) {
	return s.deleteSnapshots(ctx, `
WITH d AS (
  DELETE FROM wip_snapshots WHERE snapshot_date < $1
  RETURNING serial_number, snapshot_date
)
`+removedSummary, before.UTC())
}

const removedSummary = `
SELECT
  COALESCE(array_agg(DISTINCT serial_number), '{}'::text[]),
  COALESCE(array_agg(DISTINCT (snapshot_date AT TIME ZONE 'UTC')::date), '{}'::date[]),
  count(*)
FROM d
`

func (s *Storage) deleteSnapshots(ctx context.Context, q string, args ...any) (models.RemovedSnapshots, error) {
	var out models.RemovedSnapshots
	if err := s.db.QueryRow(ctx, q, args...).Scan(&out.Serials, &out.Days, &out.Rows); err != nil {
		return models.RemovedSnapshots{}, errors.Wrap(err, "delete snapshots")
	}
	for i, d := range out.Days {
		out.Days[i] = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
	return out, nil
}

// LastBuildCursor is the incremental build cursor saved by the last successful
// run. ok is false when the kind was never built.
func (s *Storage) LastBuildCursor(ctx context.Context, kind models.UnitKind) (time.Time, bool, error) {
	var cursor time.Time
	err := s.db.QueryRow(ctx, `
SELECT cursor_ts FROM wip_build_runs
WHERE kind = $1
ORDER BY finished_at DESC, cursor_ts DESC
LIMIT 1
`, string(kind)).Scan(&cursor)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "select build cursor")
	}
	return cursor.UTC(), true, nil
}

func (s *Storage) SaveBuildCursor(ctx context.Context, kind models.UnitKind, runID string, cursor time.Time) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO wip_build_runs (kind, run_id, cursor_ts, finished_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (kind, run_id) DO UPDATE SET cursor_ts = EXCLUDED.cursor_ts, finished_at = EXCLUDED.finished_at
`, string(kind), runID, cursor.UTC())
	if err != nil {
		return errors.Wrap(err, "insert build cursor")
	}
	return nil
}

// ListPriorFlags returns units already flagged by an earlier build.
func (s *Storage) ListPriorFlags(ctx context.Context, kind models.UnitKind, serials []string) (map[string]models.PriorFlags, error) {
	rows, err := s.db.Query(ctx, `
SELECT serial_number, bool_or(packed_previously), bool_or(void_previously), bool_or(rework_previously)
FROM wip_snapshots
WHERE kind = $1 AND ($2::text[] IS NULL OR serial_number = ANY($2))
GROUP BY serial_number
HAVING bool_or(packed_previously) OR bool_or(void_previously) OR bool_or(rework_previously)
`, string(kind), serials)
	if err != nil {
		return nil, errors.Wrap(err, "select prior flags")
	}
	defer rows.Close()

	out := make(map[string]models.PriorFlags)
	for rows.Next() {
		var sn string
		var f models.PriorFlags
		if err := rows.Scan(&sn, &f.Packed, &f.Void, &f.Rework); err != nil {
			return nil, errors.Wrap(err, "scan prior flags")
		}
		out[sn] = f
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListUnitSnapshots returns the reconstructed history of one unit, oldest first.
func (s *Storage) ListUnitSnapshots(ctx context.Context, serial string, limit, offset int) ([]*models.WipSnapshot, error) {
	limit, offset = page(limit, offset)

	rows, err := s.db.Query(ctx, `
SELECT
  serial_number, kind, checkpoint_id, checkpoint_name, transaction_ts, transaction_source_id,
  stock_code, sku, auxiliary_field, order_type, factory_status, site, building,
  snapshot_date, dwell_calendar_hours, dwell_working_hours, area,
  packed_is_last, packed_previously, void_previously, rework_previously,
  run_id, etl_time
FROM wip_snapshots
WHERE serial_number = $1
ORDER BY snapshot_date ASC
LIMIT $2 OFFSET $3
`, serial, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select unit snapshots")
	}
	defer rows.Close()

	out := []*models.WipSnapshot{}
	for rows.Next() {
		var w models.WipSnapshot
		var kind string
		var area *string
		if err := rows.Scan(
			&w.SerialNumber, &kind, &w.CheckpointID, &w.CheckpointName, &w.TransactionTimestamp, &w.TransactionSourceID,
			&w.StockCode, &w.SKU, &w.AuxiliaryField, &w.OrderType, &w.FactoryStatus, &w.Site, &w.Building,
			&w.SnapshotDate, &w.DwellTimeCalendarHours, &w.DwellTimeWorkingHours, &area,
			&w.PackedIsLastFlag, &w.PackedPreviouslyFlag, &w.VoidPreviouslyFlag, &w.ReworkPreviouslyFlag,
			&w.RunID, &w.ETLTime,
		); err != nil {
			return nil, errors.Wrap(err, "scan snapshot")
		}
		w.Kind = models.UnitKind(kind)
		if area != nil {
			w.Area = *area
		}
		w.TransactionTimestamp = w.TransactionTimestamp.UTC()
		w.SnapshotDate = w.SnapshotDate.UTC()
		w.ETLTime = w.ETLTime.UTC()
		out = append(out, &w)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// SummarizeByArea counts distinct units per area on a calendar day. An empty
// kind counts both kinds.
func (s *Storage) SummarizeByArea(ctx context.Context, day time.Time, kind models.UnitKind) ([]models.AreaCount, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	rows, err := s.db.Query(ctx, `
SELECT COALESCE(area, ''), kind, count(DISTINCT serial_number)
FROM wip_snapshots
WHERE snapshot_date >= $1 AND snapshot_date < $2
  AND ($3::text = '' OR kind = $3)
GROUP BY 1, 2
ORDER BY 1, 2
`, from, from.AddDate(0, 0, 1), string(kind))
	if err != nil {
		return nil, errors.Wrap(err, "select area summary")
	}
	defer rows.Close()

	out := []models.AreaCount{}
	for rows.Next() {
		var c models.AreaCount
		var k string
		if err := rows.Scan(&c.Area, &k, &c.Units); err != nil {
			return nil, errors.Wrap(err, "scan area summary")
		}
		c.Kind = models.UnitKind(k)
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
