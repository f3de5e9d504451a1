// Package snapshot writes the pipeline's durable artifacts: the
// combined CSV, one CSV per device, the summary table, and a manifest
// with an xxhash content fingerprint. Every file is written to a temp
// path and renamed, and the manifest goes last, so readers only ever
// observe a complete snapshot and a fatal run leaves the previous one
// serving.
package snapshot

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/sensordash/sensordash/pkg/partition"
	"github.com/sensordash/sensordash/pkg/reading"
)

// Artifact file names inside the snapshot directory.
const (
	CombinedFile = "live_data.csv"
	SummaryFile  = "live_data_summary.csv"
	ManifestFile = "manifest.json"
)

// Snapshot is everything one run publishes.
type Snapshot struct {
	UpdatedAt time.Time
	Columns   []string // canonical column order for CSV artifacts
	Parts     partition.Partitions
	Summary   []reading.SummaryRow
}

// Manifest describes the published snapshot to its readers.
type Manifest struct {
	UpdatedAt   time.Time         `json:"updated_at"`
	Fingerprint string            `json:"fingerprint"`
	Columns     []string          `json:"columns"`
	Devices     []string          `json:"devices"`
	Rows        int               `json:"rows"`
	DeviceFiles map[string]string `json:"device_files"`
}

// Publisher writes snapshots into one directory.
type Publisher struct {
	dir string
}

// NewPublisher creates a publisher rooted at dir.
func NewPublisher(dir string) (*Publisher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Publisher{dir: dir}, nil
}

// Publish writes all artifacts and returns the manifest.
func (p *Publisher) Publish(snap Snapshot) (Manifest, error) {
	manifest := Manifest{
		UpdatedAt:   snap.UpdatedAt,
		Columns:     snap.Columns,
		Devices:     snap.Parts.Order,
		DeviceFiles: make(map[string]string),
	}

	hash := xxhash.New()

	// Combined table: every device, newest first within each device,
	// devices in deterministic order.
	var combined []reading.Reading
	for _, id := range snap.Parts.Order {
		combined = append(combined, snap.Parts.Devices[id]...)
	}
	manifest.Rows = len(combined)

	combinedBytes, err := encodeReadingsCSV(snap.Columns, combined)
	if err != nil {
		return manifest, err
	}
	hash.Write(combinedBytes)
	if err := writeFileAtomic(filepath.Join(p.dir, CombinedFile), combinedBytes); err != nil {
		return manifest, err
	}

	for _, id := range snap.Parts.Order {
		deviceBytes, err := encodeReadingsCSV(snap.Columns, snap.Parts.Devices[id])
		if err != nil {
			return manifest, err
		}
		hash.Write(deviceBytes)
		name := DeviceFile(id)
		if err := writeFileAtomic(filepath.Join(p.dir, name), deviceBytes); err != nil {
			return manifest, err
		}
		manifest.DeviceFiles[id] = name
	}

	summaryBytes, err := encodeSummaryCSV(snap.Summary)
	if err != nil {
		return manifest, err
	}
	hash.Write(summaryBytes)
	if err := writeFileAtomic(filepath.Join(p.dir, SummaryFile), summaryBytes); err != nil {
		return manifest, err
	}

	manifest.Fingerprint = fmt.Sprintf("%016x", hash.Sum64())

	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return manifest, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(p.dir, ManifestFile), manifestBytes); err != nil {
		return manifest, err
	}
	return manifest, nil
}

// DeviceFile returns the per-device CSV file name.
func DeviceFile(deviceID string) string {
	return "live_data_" + sanitizeName(deviceID) + ".csv"
}

var summaryColumns = []string{
	"device_id", "timestamp", "temperature", "humidity", "light",
	"aqi_value", "aqi_status", "device_health", "alert",
}

func encodeSummaryCSV(rows []reading.SummaryRow) ([]byte, error) {
	records := [][]string{summaryColumns}
	for _, r := range rows {
		records = append(records, []string{
			r.DeviceID, r.Timestamp, r.Temperature, r.Humidity, r.Light,
			r.AQIValue, r.AQIStatus, r.DeviceHealth, r.Alert,
		})
	}
	return encodeCSV(records)
}

func encodeReadingsCSV(columns []string, rows []reading.Reading) ([]byte, error) {
	records := [][]string{columns}
	for _, r := range rows {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = r.Fields[col]
		}
		records = append(records, row)
	}
	return encodeCSV(records)
}

func encodeCSV(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to encode CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

func sanitizeName(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
