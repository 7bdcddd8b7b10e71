package cache

import (
	"testing"
	"time"
)

func TestSQLTimeRoundTrip(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	in := time.Date(2026, 8, 25, 11, 30, 45, 0, loc)

	got, err := parseSQLTime(formatSQLTime(in))
	if err != nil {
		t.Fatalf("parseSQLTime() error = %v", err)
	}
	if !got.Equal(in) {
		t.Errorf("round trip = %v, want %v", got, in)
	}
	if got.Location() != time.UTC {
		t.Errorf("parsed location = %v, want UTC", got.Location())
	}
}

func TestSQLTimeComparesTextually(t *testing.T) {
	// Expiry checks compare the stored text against datetime('now') /
	// UTC_TIMESTAMP() output, so string order must follow time order even
	// within the same day.
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	engineNow := now.Format(sqlTimeLayout)

	future := formatSQLTime(now.Add(time.Hour))
	past := formatSQLTime(now.Add(-time.Hour))

	if !(future > engineNow) {
		t.Errorf("future %q not greater than now %q", future, engineNow)
	}
	if !(past < engineNow) {
		t.Errorf("past %q not less than now %q", past, engineNow)
	}
}

func TestSQLTimeParsesEngineOutput(t *testing.T) {
	// The layout the engines themselves emit for datetime columns.
	got, err := parseSQLTime("2026-08-25 10:00:00")
	if err != nil {
		t.Fatalf("parseSQLTime() error = %v", err)
	}
	want := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parseSQLTime() = %v, want %v", got, want)
	}
}
