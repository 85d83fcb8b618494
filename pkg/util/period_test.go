package util

import (
	"testing"
	"time"
)

func TestParsePeriodForms(t *testing.T) {
	cases := map[string]time.Time{
		"1994":       time.Date(1994, 1, 1, 0, 0, 0, 0, time.UTC),
		"1994-07":    time.Date(1994, 7, 1, 0, 0, 0, 0, time.UTC),
		"1994M07":    time.Date(1994, 7, 1, 0, 0, 0, 0, time.UTC),
		"1994Q3":     time.Date(1994, 7, 1, 0, 0, 0, 0, time.UTC),
		"1994-Q4":    time.Date(1994, 10, 1, 0, 0, 0, 0, time.UTC),
		"1994-07-15": time.Date(1994, 7, 15, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, ok := ParsePeriod(in)
		if !ok {
			t.Fatalf("%q: expected ok", in)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
}

func TestParsePeriodRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "1994-13", "1994Q5", "19x4", "1994-07-40"} {
		if _, ok := ParsePeriod(in); ok {
			t.Fatalf("%q: expected failure", in)
		}
	}
}

func TestCanonicalPeriod(t *testing.T) {
	if got := CanonicalPeriod("2020-Q1"); got != "2020Q1" {
		t.Fatalf("got %q", got)
	}
	if got := CanonicalPeriod("2020M03"); got != "2020-03" {
		t.Fatalf("got %q", got)
	}
	if got := CanonicalPeriod("2020"); got != "2020" {
		t.Fatalf("got %q", got)
	}
}

func TestPeriodKeys(t *testing.T) {
	ts := time.Date(2021, 8, 9, 0, 0, 0, 0, time.UTC)
	if YearKey(ts) != "2021" || MonthKey(ts) != "2021-08" || QuarterKey(ts) != "2021Q3" {
		t.Fatalf("unexpected keys %s %s %s", YearKey(ts), MonthKey(ts), QuarterKey(ts))
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" A; ;B-E ;", ";")
	if len(got) != 2 || got[0] != "A" || got[1] != "B-E" {
		t.Fatalf("unexpected %v", got)
	}
	if SplitList("  ", ";") != nil {
		t.Fatalf("expected nil")
	}
}
