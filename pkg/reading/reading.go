package reading

import (
	"strconv"
	"strings"
	"time"
)

// Reading is one sensor sample after header normalization and timestamp
// resolution. Fields holds every canonical column as the raw cell text;
// numeric interpretation happens at the point of use so that one
// malformed cell never poisons the rest of the row.
type Reading struct {
	DeviceID string

	// Timestamp is valid only when HasTimestamp is true. Rows whose raw
	// timestamp could not be parsed are retained but excluded from any
	// time-based filtering.
	Timestamp    time.Time
	HasTimestamp bool
	RawTimestamp string

	Fields map[string]string
}

// Field returns the raw cell value for a canonical column.
func (r Reading) Field(key string) string {
	return r.Fields[key]
}

// FieldOr returns the raw cell value, or fallback when empty.
func (r Reading) FieldOr(key, fallback string) string {
	if v := strings.TrimSpace(r.Fields[key]); v != "" {
		return v
	}
	return fallback
}

// Float coerces a field to a number. The second return is false for
// missing or non-numeric cells; callers treat that as "value absent",
// never as an error.
func (r Reading) Float(key string) (float64, bool) {
	raw := strings.TrimSpace(r.Fields[key])
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SummaryRow is one line of the per-run summary table: the latest
// reading's key metrics plus the derived alert state. Values stay as
// raw strings because the summary is a projection, not a computation.
type SummaryRow struct {
	DeviceID     string `json:"device_id"`
	Timestamp    string `json:"timestamp"`
	Temperature  string `json:"temperature"`
	Humidity     string `json:"humidity"`
	Light        string `json:"light"`
	AQIValue     string `json:"aqi_value"`
	AQIStatus    string `json:"aqi_status"`
	DeviceHealth string `json:"device_health"`
	Alert        string `json:"alert"`
}
