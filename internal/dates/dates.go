package dates

import "time"

// keyLayout is the YYYY-MM-DD form used everywhere events are indexed.
const keyLayout = "2006-01-02"

// Key formats a time as the date key its calendar day is indexed under.
func Key(t time.Time) string {
	return t.Format(keyLayout)
}

// ParseKey parses a YYYY-MM-DD date key at midnight local time.
func ParseKey(key string) (time.Time, error) {
	return time.ParseInLocation(keyLayout, key, time.Local)
}

// SameDay reports whether a and b fall on the same calendar day,
// ignoring the time of day.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// WeekStart returns the preceding (or same) Sunday at the same time of day.
// It is the sole normalization entry point for week navigation; applying it
// twice yields the same date.
func WeekStart(t time.Time) time.Time {
	return t.AddDate(0, 0, -int(t.Weekday()))
}
