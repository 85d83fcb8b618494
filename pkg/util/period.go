package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParsePeriod parses a period key into the instant the period starts (UTC).
// Accepted: "1994", "1994-07", "1994Q3", "1994-Q3", "1994M07", "1994-07-15"
// and full RFC3339 timestamps.
func ParsePeriod(key string) (time.Time, bool) {
	k := strings.TrimSpace(key)
	if len(k) < 4 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(k[:4])
	if err != nil {
		return time.Time{}, false
	}
	rest := k[4:]

	switch {
	case rest == "":
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
	case len(rest) == 3 && rest[0] == '-' && isDigits(rest[1:]):
		return monthStart(year, rest[1:])
	case len(rest) == 3 && rest[0] == 'M' && isDigits(rest[1:]):
		return monthStart(year, rest[1:])
	case len(rest) == 2 && rest[0] == 'Q':
		return quarterStart(year, rest[1:])
	case len(rest) == 3 && strings.HasPrefix(rest, "-Q"):
		return quarterStart(year, rest[2:])
	}

	if t, err := time.Parse(time.DateOnly, k); err == nil {
		return t, true
	}
	if t, ok := ParseTime(k); ok {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// PeriodMillis returns the period start as unix milliseconds.
func PeriodMillis(key string) (float64, bool) {
	t, ok := ParsePeriod(key)
	if !ok {
		return 0, false
	}
	return float64(t.UnixMilli()), true
}

// CanonicalPeriod rewrites alternate period spellings ("1994-Q3", "1994M07")
// to the canonical keys "1994Q3" and "1994-07". Other keys pass through.
func CanonicalPeriod(key string) string {
	k := strings.TrimSpace(key)
	if len(k) == 7 && k[4] == '-' && k[5] == 'Q' {
		return k[:4] + k[5:]
	}
	if len(k) == 7 && k[4] == 'M' && isDigits(k[5:]) {
		return k[:4] + "-" + k[5:]
	}
	return k
}

// YearKey, MonthKey and QuarterKey render canonical period keys.
func YearKey(t time.Time) string { return fmt.Sprintf("%04d", t.Year()) }

func MonthKey(t time.Time) string { return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())) }

func QuarterKey(t time.Time) string {
	return fmt.Sprintf("%04dQ%d", t.Year(), (int(t.Month())-1)/3+1)
}

func monthStart(year int, mm string) (time.Time, bool) {
	m, err := strconv.Atoi(mm)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC), true
}

func quarterStart(year int, q string) (time.Time, bool) {
	n, err := strconv.Atoi(q)
	if err != nil || n < 1 || n > 4 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month((n-1)*3+1), 1, 0, 0, 0, 0, time.UTC), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
