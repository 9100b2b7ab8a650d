package history

import "time"

const DefaultFixedHour = 9

// endOfWorkday is the last instant of a working day (23:59:59.9999).
const endOfWorkday = 23*time.Hour + 59*time.Minute + 59*time.Second + 999_900*time.Microsecond

// NormalizeToFixedHour keeps the calendar date of t and replaces the wall clock with hour:00.
func NormalizeToFixedHour(t time.Time, hour int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, t.Location())
}

// WorkingHoursDelta returns the hours between start and end. With excludeWeekends
// every full Saturday and Sunday strictly inside the span is subtracted; spans
// shorter than two calendar days are never adjusted. A negative span yields 0.
func WorkingHoursDelta(start, end time.Time, excludeWeekends bool) float64 {
	elapsed := end.Sub(start)
	if elapsed < 0 {
		return 0
	}
	if !excludeWeekends {
		return elapsed.Hours()
	}
	if calendarDaysBetween(start, end) < 2 {
		return elapsed.Hours()
	}

	switch start.Weekday() {
	case time.Saturday:
		start = startOfDay(start).AddDate(0, 0, 2)
	case time.Sunday:
		start = startOfDay(start).AddDate(0, 0, 1)
	}
	switch end.Weekday() {
	case time.Saturday:
		end = startOfDay(end).AddDate(0, 0, -1).Add(endOfWorkday)
	case time.Sunday:
		end = startOfDay(end).AddDate(0, 0, -2).Add(endOfWorkday)
	}

	span := end.Sub(start)
	fullDays := int(span / (24 * time.Hour))
	weekendDays := 0
	for i := 1; i < fullDays; i++ {
		if isWeekend(start.AddDate(0, 0, i).Weekday()) {
			weekendDays++
		}
	}

	h := span.Hours() - float64(24*weekendDays)
	if h < 0 {
		return 0
	}
	return h
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// calendarDaysBetween counts date boundaries between a and b, ignoring wall clock.
func calendarDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da) / (24 * time.Hour))
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func timeOfDay(t time.Time) time.Duration {
	return t.Sub(startOfDay(t))
}
