// Package fs is the file-backed archive backend: one CSV file per
// device per calendar period, matching the dashboard's original
// flat-file history layout. Writes go through a temp file and rename so
// a crashed run never leaves a half-written partition behind.
package fs

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sensordash/sensordash/pkg/archive"
)

// Fixed leading columns of every partition file; the remaining columns
// are the sorted union of field names present in the partition.
var fixedColumns = []string{"key", "parsed", "device_id"}

// Store archives records under root/<device>/<period>.csv.
type Store struct {
	root string
}

// New creates a file-backed archive store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Load reads one partition file. A missing file is ErrNoPartition; a
// present but undecodable file is ErrCorruptPartition.
func (s *Store) Load(ctx context.Context, ref archive.Ref) ([]archive.Record, error) {
	f, err := os.Open(s.path(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, archive.ErrNoPartition
		}
		return nil, fmt.Errorf("failed to open partition: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", archive.ErrCorruptPartition, err)
	}
	if len(rows) == 0 || len(rows[0]) < len(fixedColumns) || rows[0][0] != "key" {
		return nil, fmt.Errorf("%w: unrecognized header", archive.ErrCorruptPartition)
	}

	header := rows[0]
	records := make([]archive.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("%w: ragged row", archive.ErrCorruptPartition)
		}
		rec := archive.Record{
			Key:      row[0],
			Parsed:   row[1] == "true",
			DeviceID: row[2],
			Fields:   make(map[string]string),
		}
		if rec.Parsed {
			t, err := time.Parse(time.RFC3339, rec.Key)
			if err != nil {
				return nil, fmt.Errorf("%w: bad timestamp key %q", archive.ErrCorruptPartition, rec.Key)
			}
			rec.Time = t
		}
		for i := len(fixedColumns); i < len(header); i++ {
			if row[i] != "" {
				rec.Fields[header[i]] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save replaces one partition file atomically.
func (s *Store) Save(ctx context.Context, ref archive.Ref, records []archive.Record) error {
	path := s.path(ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create device directory: %w", err)
	}

	fieldKeys := collectFieldKeys(records)
	header := append(append([]string{}, fixedColumns...), fieldKeys...)

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create partition file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write partition header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.Key, fmt.Sprintf("%t", rec.Parsed), rec.DeviceID}
		for _, key := range fieldKeys {
			row = append(row, rec.Fields[key])
		}
		if err := writer.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("failed to write partition row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush partition: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close partition file: %w", err)
	}
	return os.Rename(tmp, path)
}

// List walks the archive tree and enumerates partitions.
func (s *Store) List(ctx context.Context) ([]archive.Ref, error) {
	var refs []archive.Ref
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive root: %w", err)
	}
	for _, dev := range entries {
		if !dev.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.root, dev.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read device directory: %w", err)
		}
		for _, f := range files {
			name := f.Name()
			if !strings.HasSuffix(name, ".csv") {
				continue
			}
			refs = append(refs, archive.Ref{
				DeviceID: dev.Name(),
				Period:   strings.TrimSuffix(name, ".csv"),
			})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].DeviceID != refs[j].DeviceID {
			return refs[i].DeviceID < refs[j].DeviceID
		}
		return refs[i].Period < refs[j].Period
	})
	return refs, nil
}

// Close is a no-op; files are closed per operation.
func (s *Store) Close() error {
	return nil
}

func (s *Store) path(ref archive.Ref) string {
	return filepath.Join(s.root, sanitizeName(ref.DeviceID), ref.Period+".csv")
}

// collectFieldKeys gathers the union of field names across records,
// sorted, for a stable column layout.
func collectFieldKeys(records []archive.Record) []string {
	seen := make(map[string]bool)
	for _, rec := range records {
		for key := range rec.Fields {
			seen[key] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// sanitizeName keeps device directory names filesystem-safe.
func sanitizeName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
