package snapshot

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sensordash/sensordash/pkg/reading"
)

// Reader is the query layer's view of the latest published snapshot.
// It tolerates "no snapshot yet": every method reports ok=false or an
// empty result rather than an error in that case.
type Reader struct {
	dir string
}

// NewReader creates a reader over a snapshot directory.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// Manifest loads the current manifest. ok is false when no snapshot has
// been published yet.
func (r *Reader) Manifest() (Manifest, bool, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, ManifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, false, nil
		}
		return Manifest{}, false, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, false, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, true, nil
}

// CombinedPath returns the combined CSV path for passthrough serving.
func (r *Reader) CombinedPath() string {
	return filepath.Join(r.dir, CombinedFile)
}

// Records returns the combined snapshot as one map per row, keyed by
// canonical column. Empty (not an error) when no snapshot exists.
func (r *Reader) Records() ([]map[string]string, error) {
	rows, err := r.readCSV(CombinedFile)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	header := rows[0]
	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Summary returns the published summary table. Empty when no snapshot
// exists.
func (r *Reader) Summary() ([]reading.SummaryRow, error) {
	rows, err := r.readCSV(SummaryFile)
	if err != nil || len(rows) < 2 {
		return nil, err
	}
	out := make([]reading.SummaryRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(summaryColumns) {
			continue
		}
		out = append(out, reading.SummaryRow{
			DeviceID:     row[0],
			Timestamp:    row[1],
			Temperature:  row[2],
			Humidity:     row[3],
			Light:        row[4],
			AQIValue:     row[5],
			AQIStatus:    row[6],
			DeviceHealth: row[7],
			Alert:        row[8],
		})
	}
	return out, nil
}

func (r *Reader) readCSV(name string) ([][]string, error) {
	f, err := os.Open(filepath.Join(r.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return rows, nil
}
