// Package query serves the published snapshot over HTTP: JSON and CSV
// views of the combined data with device/time/limit filters, device and
// column listings, the per-device summary, and a WebSocket feed that
// announces snapshot refreshes.
package query

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/sensordash/sensordash/pkg/config"
	"github.com/sensordash/sensordash/pkg/httpx"
	"github.com/sensordash/sensordash/pkg/reading"
	"github.com/sensordash/sensordash/pkg/schema"
	"github.com/sensordash/sensordash/pkg/snapshot"
)

// Handler answers snapshot queries. All reads go through the snapshot
// directory so a concurrent refresh run never blocks the API.
type Handler struct {
	reader    *snapshot.Reader
	startTime time.Time
	now       func() time.Time
}

// NewHandler creates a handler over the snapshot directory.
func NewHandler(snapshotDir string) *Handler {
	return &Handler{
		reader:    snapshot.NewReader(snapshotDir),
		startTime: time.Now(),
		now:       time.Now,
	}
}

// DataResponse is the JSON shape of /v1/data/json.
type DataResponse struct {
	Rows    []map[string]string `json:"rows"`
	Count   int                 `json:"count"`
	Device  string              `json:"device,omitempty"`
	Days    int                 `json:"days,omitempty"`
	Limit   int                 `json:"limit"`
	Updated *time.Time          `json:"updated_at,omitempty"`
}

// HandleHealth reports process uptime and whether a snapshot exists.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(h.startTime).String(),
		"version": "1.0.0",
	}
	if m, ok, err := h.reader.Manifest(); err == nil && ok {
		resp["snapshot"] = true
		resp["snapshot_updated_at"] = m.UpdatedAt
		resp["devices"] = len(m.Devices)
	} else {
		resp["snapshot"] = false
	}
	httpx.RespondJSON(w, http.StatusOK, resp)
}

// HandleDataJSON returns snapshot rows as JSON records. Supported query
// parameters: device (case and format insensitive), days (trailing
// window on the resolved timestamp), limit (defaults to 100, capped).
func (h *Handler) HandleDataJSON(w http.ResponseWriter, r *http.Request) {
	records, err := h.reader.Records()
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	device := r.URL.Query().Get("device")
	days, err := queryInt(r, "days", 0)
	if err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, "days must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", config.QueryDefaultTail)
	if err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if limit > config.QueryMaxTail {
		limit = config.QueryMaxTail
	}

	rows := filterRecords(records, device, days, h.now().UTC())
	if len(rows) > limit {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []map[string]string{}
	}

	resp := DataResponse{Rows: rows, Count: len(rows), Device: device, Days: days, Limit: limit}
	if m, ok, err := h.reader.Manifest(); err == nil && ok {
		resp.Updated = &m.UpdatedAt
	}
	httpx.RespondJSON(w, http.StatusOK, resp)
}

// HandleDataCSV serves the combined snapshot CSV as a download. With no
// snapshot published yet it serves an empty CSV rather than an error.
func (h *Handler) HandleDataCSV(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(h.reader.CombinedPath())
	if err != nil {
		if os.IsNotExist(err) {
			httpx.RespondCSV(w, snapshot.CombinedFile, nil)
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondCSV(w, snapshot.CombinedFile, data)
}

// HandleDevices lists the device IDs of the current snapshot.
func (h *Handler) HandleDevices(w http.ResponseWriter, r *http.Request) {
	devices := []string{}
	if m, ok, err := h.reader.Manifest(); err == nil && ok {
		devices = m.Devices
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"count":   len(devices),
	})
}

// HandleColumns lists the snapshot's column names.
func (h *Handler) HandleColumns(w http.ResponseWriter, r *http.Request) {
	columns := []string{}
	if m, ok, err := h.reader.Manifest(); err == nil && ok {
		columns = m.Columns
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"columns": columns,
		"count":   len(columns),
	})
}

// HandleSummary returns the latest-per-device summary table.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reader.Summary()
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []reading.SummaryRow{}
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"summary": rows,
		"count":   len(rows),
	})
}

// filterRecords applies the device and trailing-window filters. The
// device match folds case and separators so "esp32-01", "ESP32_01" and
// "esp32 01" all name the same device. Rows without a resolved
// timestamp survive only when no window is requested.
func filterRecords(records []map[string]string, device string, days int, now time.Time) []map[string]string {
	var cutoff time.Time
	if days > 0 {
		cutoff = now.AddDate(0, 0, -days)
	}
	want := schema.Fold(device)

	var out []map[string]string
	for _, rec := range records {
		if want != "" && schema.Fold(rec[schema.FieldDeviceID]) != want {
			continue
		}
		if days > 0 {
			ts, err := time.Parse(time.RFC3339, rec["timestamp_utc"])
			if err != nil || ts.Before(cutoff) {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}
