package util

import (
	"strconv"
	"time"
)

const (
	// DateLayout is the calendar date layout used on the wire.
	DateLayout = "2006-01-02"
	// CompactDateLayout is used inside identifiers.
	CompactDateLayout = "20060102"
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
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 && len(s) != len(CompactDateLayout) {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseDate accepts a calendar date (2006-01-02 or 20060102) or anything ParseTime accepts,
// and returns midnight UTC of that day.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range []string{DateLayout, CompactDateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, ok := ParseTime(s); ok {
		return TruncateDay(t), true
	}
	return time.Time{}, false
}

// ParseDateDefault parses a date or returns def if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, ok := ParseDate(s); ok {
		return t
	}
	return def
}

// TruncateDay drops the clock part, keeping the calendar day in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LocalDay keeps the calendar day of t in its own location, as a UTC midnight.
func LocalDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders t as 2006-01-02. The zero time renders as "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

// FormatCompactDate renders t as 20060102.
func FormatCompactDate(t time.Time) string {
	return t.UTC().Format(CompactDateLayout)
}
