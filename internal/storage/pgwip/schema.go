package pgwip

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS checkpoint_events (
  id BIGSERIAL PRIMARY KEY,
  transaction_source_id BIGINT NOT NULL,
  serial_number TEXT NOT NULL,
  checkpoint_id INT NOT NULL,
  checkpoint_name TEXT NOT NULL DEFAULT '',
  transaction_ts TIMESTAMPTZ NOT NULL,
  stock_code TEXT NOT NULL DEFAULT '',
  sku TEXT NOT NULL DEFAULT '',
  success BOOLEAN NOT NULL,
  auxiliary_field TEXT NOT NULL DEFAULT '',
  order_type TEXT NULL,
  factory_status TEXT NULL,
  site TEXT NOT NULL DEFAULT '',
  building TEXT NOT NULL DEFAULT '',
  kind TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (transaction_source_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoint_events_kind_serial ON checkpoint_events(kind, serial_number, transaction_ts)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoint_events_kind_ts ON checkpoint_events(kind, transaction_ts)`,
		`
CREATE TABLE IF NOT EXISTS status_events (
  id BIGSERIAL PRIMARY KEY,
  serial_number TEXT NOT NULL,
  status TEXT NOT NULL,
  extracted_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (serial_number, status, extracted_at)
)`,
		`
CREATE TABLE IF NOT EXISTS wip_snapshots (
  id BIGSERIAL PRIMARY KEY,
  serial_number TEXT NOT NULL,
  kind TEXT NOT NULL,
  checkpoint_id INT NOT NULL,
  checkpoint_name TEXT NOT NULL DEFAULT '',
  transaction_ts TIMESTAMPTZ NOT NULL,
  transaction_source_id BIGINT NOT NULL,
  stock_code TEXT NOT NULL DEFAULT '',
  sku TEXT NOT NULL DEFAULT '',
  auxiliary_field TEXT NOT NULL DEFAULT '',
  order_type TEXT NULL,
  factory_status TEXT NULL,
  site TEXT NOT NULL DEFAULT '',
  building TEXT NOT NULL DEFAULT '',
  snapshot_date TIMESTAMPTZ NOT NULL,
  dwell_calendar_hours DOUBLE PRECISION NOT NULL,
  dwell_working_hours DOUBLE PRECISION NOT NULL,
  area TEXT NULL,
  packed_is_last BOOLEAN NOT NULL,
  packed_previously BOOLEAN NOT NULL,
  void_previously BOOLEAN NOT NULL,
  rework_previously BOOLEAN NOT NULL,
  run_id TEXT NOT NULL,
  etl_time TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_wip_snapshots_serial_date ON wip_snapshots(serial_number, snapshot_date)`,
		`CREATE INDEX IF NOT EXISTS idx_wip_snapshots_kind_date ON wip_snapshots(kind, snapshot_date)`,
		`CREATE INDEX IF NOT EXISTS idx_wip_snapshots_kind_serial_run ON wip_snapshots(kind, serial_number, run_id)`,
		`
CREATE TABLE IF NOT EXISTS wip_build_runs (
  kind TEXT NOT NULL,
  run_id TEXT NOT NULL,
  cursor_ts TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (kind, run_id)
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
