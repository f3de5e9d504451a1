package retention

import (
	"testing"
	"time"

	"github.com/sensordash/sensordash/pkg/reading"
)

func ts(t time.Time) reading.Reading {
	return reading.Reading{Timestamp: t, HasTimestamp: true}
}

func TestFilterAge(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	cutoff := Cutoff(now, 90)

	rows := []reading.Reading{
		ts(now.AddDate(0, 0, -1)),              // recent, kept
		ts(cutoff),                             // exactly at cutoff, kept
		ts(cutoff.Add(-time.Second)),           // just past, dropped
		ts(now.AddDate(0, 0, -365)),            // ancient, dropped
		{RawTimestamp: "junk", HasTimestamp: false}, // unparseable, exempt
	}

	kept := FilterAge(rows, cutoff)
	if len(kept) != 3 {
		t.Fatalf("kept %d rows, want 3", len(kept))
	}
	if kept[2].RawTimestamp != "junk" {
		t.Error("unparseable reading must be exempt from age filtering")
	}
}

func TestFilterAgeIdempotent(t *testing.T) {
	now := time.Now()
	cutoff := Cutoff(now, 30)
	rows := []reading.Reading{
		ts(now), ts(now.AddDate(0, 0, -60)), {RawTimestamp: "x"},
	}
	once := FilterAge(rows, cutoff)
	twice := FilterAge(once, cutoff)
	if len(once) != len(twice) {
		t.Errorf("second application changed the result: %d vs %d", len(once), len(twice))
	}
}

func TestCap(t *testing.T) {
	rows := make([]reading.Reading, 5)
	for i := range rows {
		rows[i] = reading.Reading{RawTimestamp: string(rune('a' + i))}
	}

	if got := Cap(rows, 3); len(got) != 3 || got[0].RawTimestamp != "a" {
		t.Errorf("Cap(5, 3) = %d rows starting %q", len(got), got[0].RawTimestamp)
	}
	if got := Cap(rows, 10); len(got) != 5 {
		t.Errorf("Cap under limit should be a no-op, got %d", len(got))
	}
	if got := Cap(rows, 0); len(got) != 5 {
		t.Errorf("Cap with n<=0 should be a no-op, got %d", len(got))
	}
}
