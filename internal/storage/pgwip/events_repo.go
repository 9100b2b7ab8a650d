package pgwip

import (
	"context"
	"time"

	"github.com/BearBump/WipBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// InsertCheckpointEvents stores scans; a repeated transaction_source_id is ignored.
// Returns the number of new rows.
func (s *Storage) InsertCheckpointEvents(ctx context.Context, events []*models.CheckpointEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
INSERT INTO checkpoint_events (
  transaction_source_id, serial_number, checkpoint_id, checkpoint_name, transaction_ts,
  stock_code, sku, success, auxiliary_field, order_type, factory_status, site, building, kind
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (transaction_source_id) DO NOTHING
`, e.TransactionSourceID, e.SerialNumber, e.CheckpointID, e.CheckpointName, e.TransactionTimestamp.UTC(),
			e.StockCode, e.SKU, e.Success, e.AuxiliaryField, e.OrderType, e.FactoryStatus, e.Site, e.Building, string(e.Kind))
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, batch)
	var inserted int64
	for range events {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, errors.Wrap(err, "insert checkpoint event")
		}
		inserted += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return 0, errors.Wrap(err, "close batch")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit tx")
	}
	return inserted, nil
}

func (s *Storage) InsertStatusEvents(ctx context.Context, events []*models.HistoricalStatusEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inserted int64
	for _, e := range events {
		tag, err := tx.Exec(ctx, `
INSERT INTO status_events (serial_number, status, extracted_at)
VALUES ($1,$2,$3)
ON CONFLICT (serial_number, status, extracted_at) DO NOTHING
`, e.SerialNumber, e.Status, e.ExtractedAt.UTC())
		if err != nil {
			return 0, errors.Wrap(err, "insert status event")
		}
		inserted += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit tx")
	}
	return inserted, nil
}

// ListCheckpointEvents returns successful scans of the kind, ordered by serial
// number and time. nil serials selects every unit.
func (s *Storage) ListCheckpointEvents(ctx context.Context, kind models.UnitKind, serials []string, since time.Time) ([]*models.CheckpointEvent, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  transaction_source_id, serial_number, checkpoint_id, checkpoint_name, transaction_ts,
  stock_code, sku, success, auxiliary_field, order_type, factory_status, site, building, kind
FROM checkpoint_events
WHERE kind = $1
  AND success
  AND ($2::text[] IS NULL OR serial_number = ANY($2))
  AND transaction_ts >= $3
ORDER BY serial_number, transaction_ts, transaction_source_id
`, string(kind), serials, since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "select checkpoint events")
	}
	defer rows.Close()

	var out []*models.CheckpointEvent
	for rows.Next() {
		e, err := scanCheckpointEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListUnitCheckpoints returns the scan history of one unit, newest first.
func (s *Storage) ListUnitCheckpoints(ctx context.Context, serial string, limit, offset int) ([]*models.CheckpointEvent, error) {
	limit, offset = page(limit, offset)

	rows, err := s.db.Query(ctx, `
SELECT
  transaction_source_id, serial_number, checkpoint_id, checkpoint_name, transaction_ts,
  stock_code, sku, success, auxiliary_field, order_type, factory_status, site, building, kind
FROM checkpoint_events
WHERE serial_number = $1
ORDER BY transaction_ts DESC
LIMIT $2 OFFSET $3
`, serial, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select unit checkpoints")
	}
	defer rows.Close()

	out := []*models.CheckpointEvent{}
	for rows.Next() {
		e, err := scanCheckpointEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ListStatusEvents(ctx context.Context, kind models.UnitKind, serials []string, since time.Time) ([]*models.HistoricalStatusEvent, error) {
	rows, err := s.db.Query(ctx, `
SELECT serial_number, status, extracted_at
FROM status_events
WHERE serial_number IN (SELECT serial_number FROM checkpoint_events WHERE kind = $1)
  AND ($2::text[] IS NULL OR serial_number = ANY($2))
  AND extracted_at >= $3
ORDER BY serial_number, extracted_at
`, string(kind), serials, since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "select status events")
	}
	defer rows.Close()

	var out []*models.HistoricalStatusEvent
	for rows.Next() {
		var e models.HistoricalStatusEvent
		if err := rows.Scan(&e.SerialNumber, &e.Status, &e.ExtractedAt); err != nil {
			return nil, errors.Wrap(err, "scan status event")
		}
		e.ExtractedAt = e.ExtractedAt.UTC()
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListChangedUnits returns units whose snapshots are stale: they got a scan
// after the cursor or have not shipped yet.
func (s *Storage) ListChangedUnits(ctx context.Context, kind models.UnitKind, after time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
SELECT serial_number FROM checkpoint_events
WHERE kind = $1 AND success AND transaction_ts > $2
UNION
SELECT serial_number FROM wip_snapshots
WHERE kind = $1 AND NOT packed_is_last
ORDER BY 1
`, string(kind), after.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "select changed units")
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var sn string
		if err := rows.Scan(&sn); err != nil {
			return nil, errors.Wrap(err, "scan serial number")
		}
		out = append(out, sn)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanCheckpointEvent(rows pgx.Rows) (*models.CheckpointEvent, error) {
	var e models.CheckpointEvent
	var kind string
	if err := rows.Scan(
		&e.TransactionSourceID, &e.SerialNumber, &e.CheckpointID, &e.CheckpointName, &e.TransactionTimestamp,
		&e.StockCode, &e.SKU, &e.Success, &e.AuxiliaryField, &e.OrderType, &e.FactoryStatus, &e.Site, &e.Building, &kind,
	); err != nil {
		return nil, errors.Wrap(err, "scan checkpoint event")
	}
	e.TransactionTimestamp = e.TransactionTimestamp.UTC()
	e.Kind = models.UnitKind(kind)
	return &e, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
