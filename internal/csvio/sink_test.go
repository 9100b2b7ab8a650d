package csvio

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/WipBox/internal/models"
	"github.com/stretchr/testify/require"
)

func TestFormatHours(t *testing.T) {
	require.Equal(t, "0.0000000", FormatHours(0))
	require.Equal(t, "76.0000000", FormatHours(76))
	require.Equal(t, "0.3333333", FormatHours(1.0/3))
	require.Equal(t, "9.9999999", FormatHours(9.99999986))
	require.Equal(t, "10.0000000", FormatHours(9.99999996))
}

func TestFormatSnapshot(t *testing.T) {
	status := "HOLD"
	row := FormatSnapshot(models.UnitKindServer, models.WipSnapshot{
		SerialNumber:           "SN1",
		CheckpointID:           150,
		TransactionTimestamp:   time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC),
		SnapshotDate:           time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		DwellTimeCalendarHours: 24.5,
		FactoryStatus:          &status,
		Area:                   "System Test",
		VoidPreviouslyFlag:     true,
	})
	require.Len(t, row, len(SnapshotHeader))
	require.Equal(t, "2024-03-04 08:30:00.000", row[4])
	require.Equal(t, "", row[9])
	require.Equal(t, "HOLD", row[10])
	require.Equal(t, "2024-03-05 09:00:00.000", row[13])
	require.Equal(t, "24.5000000", row[14])
	require.Equal(t, "0", row[17])
	require.Equal(t, "1", row[19])
}

func TestSnapshotSink_AppendsWithSingleHeader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	sink := NewSnapshotSink(dir)
	ctx := context.Background()

	d := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	require.NoError(t, sink.WriteSnapshots(ctx, models.UnitKindRack, []models.WipSnapshot{{SerialNumber: "RK1", SnapshotDate: d, RunID: "r1"}}))
	require.NoError(t, sink.WriteSnapshots(ctx, models.UnitKindRack, []models.WipSnapshot{{SerialNumber: "RK2", SnapshotDate: d, RunID: "r1"}}))
	require.NoError(t, sink.WriteSnapshots(ctx, models.UnitKindRack, nil))

	name := sink.FileName(models.UnitKindRack, "r1")
	require.Equal(t, filepath.Join(dir, "wip_rack_r1.csv"), name)

	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, SnapshotHeader, records[0])
	require.Equal(t, "RK1", records[1][0])
	require.Equal(t, "RK2", records[2][0])
}
