package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestNormalizeToFixedHour(t *testing.T) {
	in := time.Date(2024, 3, 5, 17, 42, 13, 500, time.UTC)
	require.Equal(t, at(2024, 3, 5, 9, 0), NormalizeToFixedHour(in, 9))
	require.Equal(t, at(2024, 3, 5, 15, 0), NormalizeToFixedHour(in, 15))

	// early morning stays on the same date
	require.Equal(t, at(2024, 3, 5, 9, 0), NormalizeToFixedHour(at(2024, 3, 5, 0, 1), 9))
}

func TestWorkingHoursDelta(t *testing.T) {
	// 2024-03-01 is a Friday, 2024-03-04 a Monday.
	tests := []struct {
		name            string
		start, end      time.Time
		excludeWeekends bool
		want            float64
	}{
		{"negative span calendar", at(2024, 3, 5, 10, 0), at(2024, 3, 4, 10, 0), false, 0},
		{"negative span working", at(2024, 3, 5, 10, 0), at(2024, 3, 4, 10, 0), true, 0},
		{"calendar over weekend", at(2024, 3, 1, 10, 0), at(2024, 3, 4, 14, 0), false, 76},
		{"working fri to mon", at(2024, 3, 1, 10, 0), at(2024, 3, 4, 14, 0), true, 28},
		{"same day", at(2024, 3, 4, 8, 0), at(2024, 3, 4, 17, 30), true, 9.5},
		{"next day not adjusted", at(2024, 3, 2, 10, 0), at(2024, 3, 3, 10, 0), true, 24},
		{"start on saturday", at(2024, 3, 2, 10, 0), at(2024, 3, 5, 10, 0), true, 34},
		{"end on sunday", at(2024, 2, 29, 10, 0), at(2024, 3, 3, 12, 0), true, 38},
		{"two full weeks", at(2024, 3, 4, 9, 0), at(2024, 3, 18, 9, 0), true, 240},
		{"weekdays only", at(2024, 3, 4, 9, 0), at(2024, 3, 7, 9, 0), true, 72},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, WorkingHoursDelta(tc.start, tc.end, tc.excludeWeekends), 1e-3)
		})
	}
}

func TestWorkingHoursDelta_FridayToMondayByHand(t *testing.T) {
	fri := at(2024, 3, 1, 10, 0)
	mon := at(2024, 3, 4, 14, 0)

	endOfFriday := time.Date(2024, 3, 1, 23, 59, 59, 999_900_000, time.UTC)
	byHand := endOfFriday.Sub(fri).Hours() + mon.Sub(at(2024, 3, 4, 0, 0)).Hours()

	require.InDelta(t, byHand, WorkingHoursDelta(fri, mon, true), 1e-6)
}

func TestWorkingHoursDelta_NeverNegative(t *testing.T) {
	base := at(2024, 3, 1, 0, 0)
	for i := 0; i < 14*24; i += 5 {
		for j := 0; j < 14*24; j += 7 {
			a := base.Add(time.Duration(i) * time.Hour)
			b := base.Add(time.Duration(j) * time.Hour)
			require.GreaterOrEqual(t, WorkingHoursDelta(a, b, true), 0.0)
			require.GreaterOrEqual(t, WorkingHoursDelta(a, b, false), 0.0)
		}
	}
}
