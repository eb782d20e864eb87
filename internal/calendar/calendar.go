// Package calendar implements the weekend-only trading calendar used to
// line up ledger records with the price dataset. Market holidays are
// deliberately not modeled.
package calendar

import "time"

const dateLayout = "2006-01-02"

// Parse converts a YYYY-MM-DD string to a time.Time (UTC midnight).
func Parse(date string) (time.Time, error) {
	return time.Parse(dateLayout, date)
}

// IsBusinessDay reports whether t falls on Monday through Friday.
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// PreviousBusinessDay returns the most recent weekday strictly before the
// given date. An unparsable date is returned unchanged.
func PreviousBusinessDay(date string) string {
	t, err := Parse(date)
	if err != nil {
		return date
	}
	t = t.AddDate(0, 0, -1)
	for !IsBusinessDay(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t.Format(dateLayout)
}

// BusinessDaysBetween enumerates every weekday strictly after
// startExclusive up to and including endInclusive, ascending. The result
// is empty when the end does not follow the start.
func BusinessDaysBetween(startExclusive, endInclusive string) []string {
	start, err := Parse(startExclusive)
	if err != nil {
		return nil
	}
	end, err := Parse(endInclusive)
	if err != nil {
		return nil
	}
	if !end.After(start) {
		return nil
	}

	var days []string
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(d) {
			days = append(days, d.Format(dateLayout))
		}
	}
	return days
}

// DaysBetween returns the number of calendar days from start to end.
// Used for annualizing returns over the actual elapsed horizon.
func DaysBetween(start, end string) int {
	s, err := Parse(start)
	if err != nil {
		return 0
	}
	e, err := Parse(end)
	if err != nil {
		return 0
	}
	return int(e.Sub(s).Hours() / 24)
}
