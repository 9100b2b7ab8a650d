package csvio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "checkpoints.csv")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

var header = strings.Join(CheckpointHeader, ",") + "\n"

func TestLoadCheckpointRecords(t *testing.T) {
	p := writeFile(t, header+
		"1,SN1 ,100,Build Start,2024-03-04 08:00:00.000,STK,SKU1,true,,RK9,NULL,,SITE,B1,Server\n"+
		"2,SN1,300,Pack,2024-03-08T08:00:00Z,STK,SKU1,1,,,ZOR,OPEN,SITE,B1,Server\n"+
		"3,RK1,247,Hipot,2024-03-05 10:00:00,RE-1234-01,SKU2,0,Test Start,,,,SITE,B1,\n")

	recs, err := LoadCheckpointRecords(p)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	require.Equal(t, int64(1), recs[0].TransactionSourceID)
	require.Equal(t, "SN1 ", recs[0].SerialNumber)
	require.Equal(t, time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), recs[0].TransactionTime)
	require.Nil(t, recs[0].OrderType)
	require.Nil(t, recs[0].FactoryStatus)
	require.Equal(t, "RK9", recs[0].AuxiliaryField)
	require.Equal(t, "Server", recs[0].UnitKind)

	require.Equal(t, 300, recs[1].CheckpointID)
	require.True(t, recs[1].Success)
	require.Equal(t, "ZOR", *recs[1].OrderType)

	// Неуспешный старт hi-pot доходит до правил приёма как есть.
	require.Equal(t, 247, recs[2].CheckpointID)
	require.False(t, recs[2].Success)
	require.Equal(t, "Test Start", recs[2].Message)
	require.Empty(t, recs[2].UnitKind)
}

func TestLoadCheckpointRecords_Errors(t *testing.T) {
	_, err := LoadCheckpointRecords(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)

	_, err = LoadCheckpointRecords(writeFile(t, "a,b\n"))
	require.ErrorContains(t, err, "header mismatch")

	_, err = LoadCheckpointRecords(writeFile(t, header+"x,SN1,100,,2024-03-04 08:00:00,,,true,,,,,,,Server\n"))
	require.ErrorContains(t, err, "row 2")

	_, err = LoadCheckpointRecords(writeFile(t, header+"1,SN1,100,,yesterday,,,true,,,,,,,Server\n"))
	require.ErrorContains(t, err, "transaction_date")

	_, err = LoadCheckpointRecords(writeFile(t, header+"1,SN1,100,,2024-03-04 08:00:00,,,maybe,,,,,,,Server\n"))
	require.ErrorContains(t, err, "success")

	_, err = LoadCheckpointRecords(writeFile(t, header+"1,SN1,100,,2024-03-04 08:00:00,,,true,,,,,,Server\n"))
	require.ErrorContains(t, err, "expected 15 columns")
}
