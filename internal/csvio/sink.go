package csvio

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BearBump/WipBox/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	DateTimeLayout = "2006-01-02 15:04:05.000"
	dwellPlaces    = 7
)

var SnapshotHeader = []string{
	"serial_number", "unit_kind", "checkpoint_id", "checkpoint_name", "transaction_date", "transaction_source_id",
	"stock_code", "sku", "auxiliary_field", "order_type", "factory_status", "site", "building",
	"wip_snapshot_date", "dwell_time_calendar", "dwell_time_working", "area",
	"packed_is_last_flag", "packed_previously_flag", "void_previously_flag", "rework_previously_flag",
	"run_id", "etl_time",
}

// SnapshotSink appends snapshots to one CSV file per unit kind and run.
type SnapshotSink struct {
	dir string
	mu  sync.Mutex
}

func NewSnapshotSink(dir string) *SnapshotSink {
	return &SnapshotSink{dir: dir}
}

func (s *SnapshotSink) FileName(kind models.UnitKind, runID string) string {
	if runID == "" {
		runID = "adhoc"
	}
	return filepath.Join(s.dir, fmt.Sprintf("wip_%s_%s.csv", strings.ToLower(string(kind)), runID))
}

func (s *SnapshotSink) WriteSnapshots(_ context.Context, kind models.UnitKind, snaps []models.WipSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "create export dir")
	}

	name := s.FileName(kind, snaps[0].RunID)
	_, statErr := os.Stat(name)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open export file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(SnapshotHeader); err != nil {
			return errors.Wrap(err, "write csv header")
		}
	}
	for _, snap := range snaps {
		if err := w.Write(FormatSnapshot(kind, snap)); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flush csv")
}

// FormatSnapshot renders one row the way the reporting database expects it.
func FormatSnapshot(kind models.UnitKind, w models.WipSnapshot) []string {
	return []string{
		w.SerialNumber,
		string(kind),
		strconv.Itoa(w.CheckpointID),
		w.CheckpointName,
		w.TransactionTimestamp.Format(DateTimeLayout),
		strconv.FormatInt(w.TransactionSourceID, 10),
		w.StockCode,
		w.SKU,
		w.AuxiliaryField,
		deref(w.OrderType),
		deref(w.FactoryStatus),
		w.Site,
		w.Building,
		w.SnapshotDate.Format(DateTimeLayout),
		FormatHours(w.DwellTimeCalendarHours),
		FormatHours(w.DwellTimeWorkingHours),
		w.Area,
		flag(w.PackedIsLastFlag),
		flag(w.PackedPreviouslyFlag),
		flag(w.VoidPreviouslyFlag),
		flag(w.ReworkPreviouslyFlag),
		w.RunID,
		w.ETLTime.Format(DateTimeLayout),
	}
}

// FormatHours rounds half away from zero to 7 decimal places.
func FormatHours(h float64) string {
	return decimal.NewFromFloat(h).StringFixed(dwellPlaces)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
