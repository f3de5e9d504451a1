// Package schema maps arbitrary raw column labels onto the canonical
// schema the pipeline operates on. The upstream sheet renames and
// reformats its headers between runs ("Device ID", "device_id",
// "Device  ID ", "Temperature (°C)"), so matching is data-driven: one
// declarative alias table, applied once per run.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Canonical column names.
const (
	FieldDeviceID     = "device_id"
	FieldTimestamp    = "timestamp"
	FieldTemperature  = "temperature"
	FieldHumidity     = "humidity"
	FieldLight        = "light"
	FieldAQIValue     = "aqi_value"
	FieldAQIStatus    = "aqi_status"
	FieldDeviceHealth = "device_health"
	FieldECO2         = "eco2"
)

// ErrNoDeviceColumn means no header resolved to the device identity
// column. A device-less dataset cannot be partitioned, so the run must
// fail fast instead of producing an empty result.
var ErrNoDeviceColumn = errors.New("no device identity column found")

// aliasRule maps a canonical name to token sets. A header matches when
// every token of any one set is a substring of its folded form. Rules
// are checked in order, so the more specific rule comes first
// (aqi_status before aqi_value, device_health before device_id).
type aliasRule struct {
	canonical string
	tokens    [][]string
}

var aliases = []aliasRule{
	{FieldAQIStatus, [][]string{{"aqi", "status"}, {"airquality", "status"}}},
	{FieldAQIValue, [][]string{{"aqi"}, {"airquality"}}},
	{FieldDeviceHealth, [][]string{{"device", "health"}, {"health"}}},
	{FieldDeviceID, [][]string{{"device", "id"}, {"sensor", "id"}, {"device"}}},
	{FieldTimestamp, [][]string{{"timestamp"}, {"datetime"}, {"time"}, {"date"}}},
	{FieldTemperature, [][]string{{"temperature"}, {"temp"}}},
	{FieldHumidity, [][]string{{"humidity"}}},
	{FieldLight, [][]string{{"light"}, {"lux"}}},
	// The subscript in "eCO₂" folds away entirely, hence the bare "eco".
	{FieldECO2, [][]string{{"eco2"}, {"co2"}, {"eco"}}},
}

// NormalizeHeader cleans a raw header without canonicalizing it: trim,
// strip parenthetical unit markers, collapse internal whitespace to a
// single underscore. Unmatched headers pass through in this form.
func NormalizeHeader(raw string) string {
	s := stripParens(raw)
	return strings.Join(strings.Fields(s), "_")
}

// Canonicalize maps a raw header to its canonical name, or to its
// normalized form when no alias matches. It is idempotent: an already
// canonical header folds back onto itself.
func Canonicalize(raw string) string {
	folded := Fold(raw)
	for _, rule := range aliases {
		for _, set := range rule.tokens {
			ok := true
			for _, tok := range set {
				if !strings.Contains(folded, tok) {
					ok = false
					break
				}
			}
			if ok {
				return rule.canonical
			}
		}
	}
	return NormalizeHeader(raw)
}

// NormalizeHeaders canonicalizes a full header row. It fails when no
// header resolves to the device identity column.
func NormalizeHeaders(raw []string) ([]string, error) {
	out := make([]string, len(raw))
	hasDevice := false
	for i, h := range raw {
		out[i] = Canonicalize(h)
		if out[i] == FieldDeviceID {
			hasDevice = true
		}
	}
	if !hasDevice {
		return nil, fmt.Errorf("%w in headers %v", ErrNoDeviceColumn, raw)
	}
	return out, nil
}

// Fold produces the comparison-insensitive form used for alias matching
// and for request-time device lookups: lowercased with everything but
// letters and digits removed.
func Fold(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(stripParens(s)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripParens removes parenthetical unit markers like "(°C)" or "(ppm)".
func stripParens(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return strings.TrimSpace(b.String())
}
