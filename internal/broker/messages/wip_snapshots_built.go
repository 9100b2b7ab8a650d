package messages

import "time"

type WipSnapshotsBuilt struct {
	RunID        string        `json:"run_id"`
	SerialNumber string        `json:"serial_number"`
	UnitKind     string        `json:"unit_kind"`
	ETLTime      time.Time     `json:"etl_time"`
	Snapshots    []WipSnapshot `json:"snapshots"`
}

type WipSnapshot struct {
	SnapshotDate           time.Time `json:"snapshot_date"`
	CheckpointID           int       `json:"checkpoint_id"`
	CheckpointName         string    `json:"checkpoint_name,omitempty"`
	TransactionTime        time.Time `json:"transaction_time"`
	Area                   string    `json:"area,omitempty"`
	FactoryStatus          *string   `json:"factory_status,omitempty"`
	DwellTimeCalendarHours float64   `json:"dwell_time_calendar_hours"`
	DwellTimeWorkingHours  float64   `json:"dwell_time_working_hours"`
	PackedIsLast           bool      `json:"packed_is_last"`
	PackedPreviously       bool      `json:"packed_previously"`
	VoidPreviously         bool      `json:"void_previously"`
	ReworkPreviously       bool      `json:"rework_previously"`
}
