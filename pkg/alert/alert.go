// Package alert derives alert state from a reading's metrics. The
// evaluator is a pure, total function: missing or non-numeric metrics
// mean "condition does not fire", never an error.
package alert

import (
	"strconv"
	"strings"

	"github.com/sensordash/sensordash/pkg/config"
	"github.com/sensordash/sensordash/pkg/reading"
	"github.com/sensordash/sensordash/pkg/schema"
)

// Fired reason labels.
const (
	ReasonHighTemp = "🌡️ High Temp"
	ReasonHighAQI  = "🌫️ High AQI"

	// NormalState is the sentinel summary when nothing fired.
	NormalState = "✅ Normal"
)

// Thresholds holds the static alert thresholds for one run.
type Thresholds struct {
	TempC float64 // fires when temperature is strictly above
	AQI   float64 // fires when AQI is at or above
}

// State is the derived alert classification of one reading.
type State struct {
	Reasons []string
}

// Fired reports whether any condition fired.
func (s State) Fired() bool { return len(s.Reasons) > 0 }

// String is the composed textual summary: the ordered concatenation of
// fired reasons, or the Normal sentinel.
func (s State) String() string {
	if !s.Fired() {
		return NormalState
	}
	return strings.Join(s.Reasons, " | ")
}

// Evaluate classifies one reading against the thresholds.
func Evaluate(r reading.Reading, th Thresholds) State {
	var st State
	if temp, ok := r.Float(schema.FieldTemperature); ok && temp > th.TempC {
		st.Reasons = append(st.Reasons, ReasonHighTemp)
	}
	if aqi, ok := r.Float(schema.FieldAQIValue); ok && aqi >= th.AQI {
		st.Reasons = append(st.Reasons, ReasonHighAQI)
	}
	return st
}

// Severity is the display tier for a single metric value. Warning is
// display-only: it never affects the fired/not-fired decision.
type Severity int

const (
	SevUnknown Severity = iota // missing or non-numeric
	SevNormal
	SevWarning // at or above WarnFraction of the threshold
	SevAlert   // at or above the threshold
)

// ClassifyValue maps a raw metric cell to its display severity.
func ClassifyValue(raw string, threshold float64) Severity {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return SevUnknown
	}
	switch {
	case v >= threshold:
		return SevAlert
	case v >= threshold*config.WarnFraction:
		return SevWarning
	default:
		return SevNormal
	}
}
