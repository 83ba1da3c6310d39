package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for every persisted date.
const DateLayout = "2006-01-02"

// DateOf formats t as a calendar date in loc (t's own location when loc is nil).
func DateOf(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateLayout)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// PreviousDate returns the calendar date before s, or "" when s does not parse.
func PreviousDate(s string) string {
	t, err := ParseDate(s)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(DateLayout)
}

// DaysBetween returns the number of calendar days from a to b. Dates are
// parsed as UTC midnights so DST shifts never produce fractional days.
func DaysBetween(a, b string) (int, error) {
	ta, err := ParseDate(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDate(b)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}
