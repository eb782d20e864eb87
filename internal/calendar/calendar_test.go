package calendar

import (
	"reflect"
	"testing"
	"time"
)

func TestIsBusinessDay(t *testing.T) {
	cases := []struct {
		date string
		want bool
	}{
		{"2025-10-13", true},  // Monday
		{"2025-10-17", true},  // Friday
		{"2025-10-11", false}, // Saturday
		{"2025-10-12", false}, // Sunday
	}
	for _, tc := range cases {
		d, err := Parse(tc.date)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.date, err)
		}
		if got := IsBusinessDay(d); got != tc.want {
			t.Errorf("IsBusinessDay(%s) = %v, want %v", tc.date, got, tc.want)
		}
	}
}

func TestPreviousBusinessDay(t *testing.T) {
	cases := []struct {
		date string
		want string
	}{
		{"2025-10-14", "2025-10-13"}, // Tuesday -> Monday
		{"2025-10-13", "2025-10-10"}, // Monday -> Friday
		{"2025-10-12", "2025-10-10"}, // Sunday -> Friday
		{"2025-10-11", "2025-10-10"}, // Saturday -> Friday
	}
	for _, tc := range cases {
		if got := PreviousBusinessDay(tc.date); got != tc.want {
			t.Errorf("PreviousBusinessDay(%s) = %s, want %s", tc.date, got, tc.want)
		}
	}
}

func TestPreviousBusinessDayUnparsable(t *testing.T) {
	if got := PreviousBusinessDay("not-a-date"); got != "not-a-date" {
		t.Errorf("unparsable input changed: %s", got)
	}
}

func TestBusinessDaysBetweenSkipsWeekend(t *testing.T) {
	// Friday to Tuesday crosses a weekend.
	got := BusinessDaysBetween("2025-10-10", "2025-10-14")
	want := []string{"2025-10-13", "2025-10-14"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BusinessDaysBetween = %v, want %v", got, want)
	}
}

func TestBusinessDaysBetweenEmptyRanges(t *testing.T) {
	if got := BusinessDaysBetween("2025-10-14", "2025-10-14"); got != nil {
		t.Errorf("same-day range should be empty, got %v", got)
	}
	if got := BusinessDaysBetween("2025-10-14", "2025-10-10"); got != nil {
		t.Errorf("inverted range should be empty, got %v", got)
	}
}

func TestBusinessDaysBetweenExcludesStart(t *testing.T) {
	got := BusinessDaysBetween("2025-10-13", "2025-10-15")
	want := []string{"2025-10-14", "2025-10-15"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BusinessDaysBetween = %v, want %v", got, want)
	}
}

func TestDaysBetween(t *testing.T) {
	if got := DaysBetween("2025-01-01", "2025-01-11"); got != 10 {
		t.Errorf("DaysBetween = %d, want 10", got)
	}
	if got := DaysBetween("2025-01-01", "2025-01-01"); got != 0 {
		t.Errorf("DaysBetween same day = %d, want 0", got)
	}
}

func TestParseRoundTrip(t *testing.T) {
	d, err := Parse("2025-02-28")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Weekday() != time.Friday {
		t.Errorf("2025-02-28 should be a Friday, got %s", d.Weekday())
	}
}
