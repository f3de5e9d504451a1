package archive

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sensordash/sensordash/pkg/reading"
)

// Record is one archived reading. Key is the deduplication key within a
// partition: the canonical RFC3339 timestamp for parseable rows, the
// raw timestamp string otherwise, so unparseable rows are preserved
// without inventing an instant for them.
type Record struct {
	DeviceID string            `json:"device_id"`
	Key      string            `json:"key"`
	Time     time.Time         `json:"time,omitempty"` // zero when unparseable
	Parsed   bool              `json:"parsed"`
	Fields   map[string]string `json:"fields"`
}

// FromReading converts a pipeline reading into its archive record. The
// fields map is cloned so later decoration of the reading cannot reach
// into already-archived history.
func FromReading(r reading.Reading) Record {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	rec := Record{
		DeviceID: r.DeviceID,
		Fields:   fields,
	}
	if r.HasTimestamp {
		rec.Key = r.Timestamp.UTC().Format(time.RFC3339)
		rec.Time = r.Timestamp
		rec.Parsed = true
	} else {
		rec.Key = r.RawTimestamp
	}
	return rec
}

// Ref addresses one partition: the full history of one device for one
// calendar period.
type Ref struct {
	DeviceID string
	Period   string // "2006-01"
}

// Partition error kinds. A missing partition is the normal first-sight
// case; a corrupt one is a distinct, observable condition the merger
// recovers from by overwriting.
var (
	ErrNoPartition      = errors.New("archive partition does not exist")
	ErrCorruptPartition = errors.New("archive partition is corrupt")
)

// Store is the period-partitioned durable history. Implementations:
// fs (CSV files, production), badger (embedded KV, production
// alternative), memory (tests). The merger assumes exclusive access
// during Save, which the single-run guarantee provides.
type Store interface {
	// Load returns a partition's records. ErrNoPartition when absent,
	// ErrCorruptPartition when present but unreadable.
	Load(ctx context.Context, ref Ref) ([]Record, error)

	// Save replaces a partition's records.
	Save(ctx context.Context, ref Ref, records []Record) error

	// List enumerates existing partitions.
	List(ctx context.Context) ([]Ref, error)

	// Close cleanly shuts down the store.
	Close() error
}

// Period returns the calendar period a time belongs to.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// SortAscending orders records oldest first; records without a parsed
// time sort last, by key for determinism.
func SortAscending(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case a.Parsed && b.Parsed:
			return a.Time.Before(b.Time)
		case a.Parsed:
			return true
		case b.Parsed:
			return false
		default:
			return a.Key < b.Key
		}
	})
}
