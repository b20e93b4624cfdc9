package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseDateLayouts(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-03-15", "20240315", "2024-03-15T13:45:00Z"} {
		got, ok := ParseDate(s)
		if !ok {
			t.Fatalf("%s: expected ok", s)
		}
		if !got.Equal(want) {
			t.Fatalf("%s: got %v want %v", s, got, want)
		}
	}
	if _, ok := ParseDate("15/03/2024"); ok {
		t.Fatalf("expected failure for unsupported layout")
	}
}

func TestParseDateDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	got := ParseDateDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2024, 1, 2, 23, 0, 0, 0, time.UTC)
	if FormatDate(d) != "2024-01-02" {
		t.Fatalf("unexpected %s", FormatDate(d))
	}
	if FormatCompactDate(d) != "20240102" {
		t.Fatalf("unexpected %s", FormatCompactDate(d))
	}
	if FormatDate(time.Time{}) != "" {
		t.Fatalf("zero time should format empty")
	}
}

func TestLocalDayKeepsLocationCalendarDay(t *testing.T) {
	taipei := time.FixedZone("CST", 8*3600)
	early := time.Date(2024, 3, 5, 6, 30, 0, 0, taipei)

	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	if got := LocalDay(early); !got.Equal(want) {
		t.Fatalf("LocalDay = %v, want %v", got, want)
	}
	if got := TruncateDay(early); got.Equal(want) {
		t.Fatalf("TruncateDay should use the UTC day, got %v", got)
	}
}
