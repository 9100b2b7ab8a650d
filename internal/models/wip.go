package models

import "time"

type UnitKind string

const (
	UnitKindServer UnitKind = "Server"
	UnitKindRack   UnitKind = "Rack"
)

// CheckpointEvent is one successful scan of a unit at a production station.
type CheckpointEvent struct {
	SerialNumber         string
	CheckpointID         int
	CheckpointName       string
	TransactionTimestamp time.Time
	StockCode            string
	SKU                  string
	Success              bool
	// AuxiliaryField links a server scan to a related rack serial number.
	AuxiliaryField      string
	OrderType           *string
	FactoryStatus       *string
	TransactionSourceID int64

	Site     string
	Building string
	Kind     UnitKind
}

// HistoricalStatusEvent is one external (SAP) status record of a unit.
type HistoricalStatusEvent struct {
	SerialNumber string
	Status       string
	ExtractedAt  time.Time
}

// WipSnapshot is the reconstructed position of one unit at one snapshot time.
type WipSnapshot struct {
	SerialNumber         string
	CheckpointID         int
	CheckpointName       string
	TransactionTimestamp time.Time
	TransactionSourceID  int64
	StockCode            string
	SKU                  string
	AuxiliaryField       string
	OrderType            *string
	FactoryStatus        *string
	Site                 string
	Building             string
	Kind                 UnitKind

	SnapshotDate           time.Time
	DwellTimeCalendarHours float64
	DwellTimeWorkingHours  float64
	Area                   string

	PackedIsLastFlag     bool
	PackedPreviouslyFlag bool
	VoidPreviouslyFlag   bool
	ReworkPreviouslyFlag bool

	RunID   string
	ETLTime time.Time
}

// PriorFlags carries "previously X" flags already known from an earlier run.
type PriorFlags struct {
	Packed bool
	Void   bool
	Rework bool
}

type AreaCount struct {
	Area  string
	Kind  UnitKind
	Units int64
}

// SnapshotCleanup selects snapshots superseded by a finished build: rows of
// Kind written by runs other than RunID. Serials limits the cleanup to the
// rebuilt units (nil means every unit of the kind); Keep lists units that
// failed to rebuild and keep their old rows.
type SnapshotCleanup struct {
	Kind    UnitKind
	Serials []string
	RunID   string
	Keep    []string
}

// RemovedSnapshots describes rows dropped from the snapshot table.
type RemovedSnapshots struct {
	Serials []string
	Days    []time.Time
	Rows    int64
}
