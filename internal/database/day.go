package database

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar date in YYYY-MM-DD form, the reconciliation key
// shared by observations, forecasts, and fact rows. Time-of-day and
// timezone are deliberately absent.
type Day string

// DayOf truncates a timestamp to its calendar day.
func DayOf(t time.Time) Day {
	return Day(t.Format(dayLayout))
}

// Today returns the current calendar day.
func Today() Day {
	return DayOf(time.Now())
}

// ParseDay validates a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Time returns the day as a midnight-UTC time. Zero time if malformed.
func (d Day) Time() time.Time {
	t, err := time.Parse(dayLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the day shifted by n calendar days.
func (d Day) AddDays(n int) Day {
	return DayOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d falls before other.
// Lexicographic order matches chronological order for this layout.
func (d Day) Before(other Day) bool {
	return string(d) < string(other)
}

// DaysBetween returns the number of whole days from a to b.
// Negative when b precedes a.
func DaysBetween(a, b Day) int {
	return int(b.Time().Sub(a.Time()).Hours() / 24)
}

// String implements fmt.Stringer.
func (d Day) String() string {
	return string(d)
}

// FormatDayDisplay formats a day for human-readable output, e.g. "Jan 02, 2026".
func FormatDayDisplay(d Day) string {
	t, err := time.Parse(dayLayout, string(d))
	if err != nil {
		return string(d)
	}
	return t.Format("Jan 02, 2006")
}
