package archive

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sensordash/sensordash/pkg/reading"
)

// Merger folds one run's per-device readings into the durable archive.
// Merges are idempotent and monotonic: re-archiving the same batch is a
// no-op, and a merge never drops a previously stored record.
type Merger struct {
	store Store
}

// NewMerger creates a merger over the given store.
func NewMerger(store Store) *Merger {
	return &Merger{store: store}
}

// MergeResult reports what one partition merge did.
type MergeResult struct {
	Ref       Ref
	Existing  int  // records already in the partition
	Total     int  // records after the merge
	Recovered bool // existing partition was corrupt and got overwritten
}

// Added returns how many records the merge contributed.
func (r MergeResult) Added() int { return r.Total - r.Existing }

// MergeDevice archives one device's readings for this run, splitting
// them into calendar-period partitions. Readings without a parseable
// timestamp archive under the run's own period so they are never lost.
func (m *Merger) MergeDevice(ctx context.Context, deviceID string, rows []reading.Reading, runTime time.Time) ([]MergeResult, error) {
	batches := make(map[string][]Record)
	for _, r := range rows {
		rec := FromReading(r)
		period := Period(runTime)
		if rec.Parsed {
			period = Period(rec.Time)
		}
		batches[period] = append(batches[period], rec)
	}

	var results []MergeResult
	for period, batch := range batches {
		res, err := m.Merge(ctx, Ref{DeviceID: deviceID, Period: period}, batch)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Merge merges one batch into one partition: load existing, concatenate
// with the batch, deduplicate by timestamp key keeping the later-seen
// record, sort ascending, persist. A corrupt existing partition is
// logged and overwritten with the current batch only — bounded
// historical loss is preferred over failing the whole run.
func (m *Merger) Merge(ctx context.Context, ref Ref, batch []Record) (MergeResult, error) {
	result := MergeResult{Ref: ref}

	existing, err := m.store.Load(ctx, ref)
	switch {
	case err == nil:
		result.Existing = len(existing)
	case errors.Is(err, ErrNoPartition):
		// first sight of this device/period
	case errors.Is(err, ErrCorruptPartition):
		log.Printf("⚠️  Archive partition %s/%s corrupt, overwriting with current batch: %v", ref.DeviceID, ref.Period, err)
		result.Recovered = true
	default:
		return result, fmt.Errorf("failed to load partition %s/%s: %w", ref.DeviceID, ref.Period, err)
	}

	merged := dedupe(existing, batch)
	SortAscending(merged)

	if err := m.store.Save(ctx, ref, merged); err != nil {
		return result, fmt.Errorf("failed to save partition %s/%s: %w", ref.DeviceID, ref.Period, err)
	}
	result.Total = len(merged)
	return result, nil
}

// dedupe keeps one record per key, later-seen wins. Order of first
// sight is preserved; SortAscending fixes the final ordering anyway.
func dedupe(existing, batch []Record) []Record {
	index := make(map[string]int, len(existing)+len(batch))
	out := make([]Record, 0, len(existing)+len(batch))

	for _, rec := range existing {
		if i, ok := index[rec.Key]; ok {
			out[i] = rec
			continue
		}
		index[rec.Key] = len(out)
		out = append(out, rec)
	}
	for _, rec := range batch {
		if i, ok := index[rec.Key]; ok {
			out[i] = rec
			continue
		}
		index[rec.Key] = len(out)
		out = append(out, rec)
	}
	return out
}
