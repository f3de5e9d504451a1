// Package retention bounds the working set with two independent
// policies applied in sequence: a global age cutoff, then a per-device
// rolling cap. Age first, count second — the other order could keep
// very old rows at the expense of recent ones when upstream ordering
// drifts.
package retention

import (
	"time"

	"github.com/sensordash/sensordash/pkg/reading"
)

// FilterAge drops readings older than cutoff. Readings without a
// resolvable timestamp are exempt: over-retention beats silent data
// loss caused by a parse failure. Idempotent.
func FilterAge(rows []reading.Reading, cutoff time.Time) []reading.Reading {
	kept := make([]reading.Reading, 0, len(rows))
	for _, r := range rows {
		if r.HasTimestamp && r.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// Cap truncates a newest-first device sequence to at most n readings.
// Because the sequence is already ordered newest first, the kept prefix
// is exactly the n most recent.
func Cap(rows []reading.Reading, n int) []reading.Reading {
	if n <= 0 || len(rows) <= n {
		return rows
	}
	return rows[:n]
}

// Cutoff computes the retention cutoff for a run evaluated at now.
func Cutoff(now time.Time, retentionDays int) time.Time {
	return now.AddDate(0, 0, -retentionDays)
}
