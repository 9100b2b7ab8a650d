package csvio

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/WipBox/internal/broker/messages"
)

var CheckpointHeader = []string{
	"transaction_source_id", "serial_number", "checkpoint_id", "checkpoint_name", "transaction_date",
	"stock_code", "sku", "success", "message", "auxiliary_field", "order_type", "factory_status", "site", "building", "unit_kind",
}

// LoadCheckpointRecords reads a raw scan export into the same records the
// shop-floor system publishes, failed scans included. Empty order_type and
// factory_status cells become nil; an empty unit_kind is left for the stock
// code rule.
func LoadCheckpointRecords(filename string) ([]messages.CheckpointRecorded, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoints file %s: %w", filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoints CSV: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("checkpoints CSV must have a header")
	}
	if !validateHeader(records[0], CheckpointHeader) {
		return nil, fmt.Errorf("checkpoints CSV header mismatch. Expected: %v, Got: %v", CheckpointHeader, records[0])
	}

	out := make([]messages.CheckpointRecorded, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != len(CheckpointHeader) {
			return nil, fmt.Errorf("checkpoints CSV row %d: expected %d columns, got %d", i+2, len(CheckpointHeader), len(record))
		}
		e, err := parseCheckpoint(record)
		if err != nil {
			return nil, fmt.Errorf("checkpoints CSV row %d: %w", i+2, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func parseCheckpoint(r []string) (messages.CheckpointRecorded, error) {
	srcID, err := strconv.ParseInt(strings.TrimSpace(r[0]), 10, 64)
	if err != nil {
		return messages.CheckpointRecorded{}, fmt.Errorf("invalid transaction_source_id %q: %w", r[0], err)
	}
	cpID, err := strconv.Atoi(strings.TrimSpace(r[2]))
	if err != nil {
		return messages.CheckpointRecorded{}, fmt.Errorf("invalid checkpoint_id %q: %w", r[2], err)
	}
	ts, err := parseTime(r[4])
	if err != nil {
		return messages.CheckpointRecorded{}, fmt.Errorf("invalid transaction_date %q: %w", r[4], err)
	}
	success, err := strconv.ParseBool(strings.TrimSpace(r[7]))
	if err != nil {
		return messages.CheckpointRecorded{}, fmt.Errorf("invalid success %q: %w", r[7], err)
	}

	return messages.CheckpointRecorded{
		TransactionSourceID: srcID,
		SerialNumber:        r[1],
		CheckpointID:        cpID,
		CheckpointName:      r[3],
		TransactionTime:     ts,
		StockCode:           r[5],
		SKU:                 r[6],
		Success:             success,
		Message:             strings.TrimSpace(r[8]),
		AuxiliaryField:      r[9],
		OrderType:           optional(r[10]),
		FactoryStatus:       optional(r[11]),
		Site:                r[12],
		Building:            r[13],
		UnitKind:            strings.TrimSpace(r[14]),
	}, nil
}

func parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{DateTimeLayout, "2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported datetime format")
}

// optional maps "" and the literal "NULL" of legacy exports to nil.
func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "NULL") {
		return nil
	}
	return &v
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i, col := range expected {
		if strings.TrimSpace(actual[i]) != col {
			return false
		}
	}
	return true
}
