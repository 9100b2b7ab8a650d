package history

import (
	"testing"

	"github.com/BearBump/WipBox/internal/models"
	"github.com/stretchr/testify/require"
)

func TestStatusHistory_Resolve(t *testing.T) {
	h := NewStatusHistory([]*models.HistoricalStatusEvent{
		{SerialNumber: "SN", Status: "B", ExtractedAt: at(2024, 3, 4, 8, 0)},
		{SerialNumber: "SN", Status: "A", ExtractedAt: at(2024, 3, 2, 8, 0)},
	})
	require.Equal(t, 2, h.Len())

	_, ok := h.Resolve(at(2024, 3, 1, 9, 0))
	require.False(t, ok)

	st, ok := h.Resolve(at(2024, 3, 3, 9, 0))
	require.True(t, ok)
	require.Equal(t, "A", st)

	st, ok = h.Resolve(at(2024, 3, 5, 9, 0))
	require.True(t, ok)
	require.Equal(t, "B", st)

	// inclusive cutoff
	st, ok = h.Resolve(at(2024, 3, 4, 8, 0))
	require.True(t, ok)
	require.Equal(t, "B", st)
}

func TestStatusHistory_Empty(t *testing.T) {
	var h *StatusHistory
	_, ok := h.Resolve(at(2024, 3, 1, 9, 0))
	require.False(t, ok)
	require.Nil(t, NewStatusHistory(nil))
	require.Equal(t, 0, NewStatusHistory(nil).Len())
}
