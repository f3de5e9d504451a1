package alert

import (
	"path/filepath"
	"testing"

	"github.com/sensordash/sensordash/pkg/reading"
	"github.com/sensordash/sensordash/pkg/schema"
)

var testThresholds = Thresholds{TempC: 30.0, AQI: 600.0}

func withMetrics(temp, aqi string) reading.Reading {
	return reading.Reading{Fields: map[string]string{
		schema.FieldTemperature: temp,
		schema.FieldAQIValue:    aqi,
	}}
}

func TestEvaluateBoundaries(t *testing.T) {
	cases := []struct {
		temp, aqi string
		want      string
	}{
		{"30.1", "10", ReasonHighTemp},
		{"30.0", "10", NormalState}, // temperature is strictly above
		{"29.9", "10", NormalState},
		{"20", "600", ReasonHighAQI}, // AQI is at-or-above
		{"20", "599.9", NormalState},
		{"35", "700", ReasonHighTemp + " | " + ReasonHighAQI},
		{"", "", NormalState},
		{"hot", "bad", NormalState}, // non-numeric never fires
	}
	for _, c := range cases {
		st := Evaluate(withMetrics(c.temp, c.aqi), testThresholds)
		if st.String() != c.want {
			t.Errorf("Evaluate(temp=%q, aqi=%q) = %q, want %q", c.temp, c.aqi, st.String(), c.want)
		}
	}
}

func TestClassifyValue(t *testing.T) {
	cases := []struct {
		raw  string
		want Severity
	}{
		{"35", SevAlert},
		{"30", SevAlert},
		{"24", SevWarning}, // 0.8 * 30
		{"29.9", SevWarning},
		{"23.9", SevNormal},
		{"", SevUnknown},
		{"N/A", SevUnknown},
	}
	for _, c := range cases {
		if got := ClassifyValue(c.raw, 30.0); got != c.want {
			t.Errorf("ClassifyValue(%q, 30) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestTrackerEdgeTriggering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert_state.json")

	// Run 1: device fires for the first time.
	tr := NewTracker(path)
	newly := tr.Observe("esp32-01", State{Reasons: []string{ReasonHighTemp}})
	if len(newly) != 1 || newly[0] != ReasonHighTemp {
		t.Fatalf("first firing should be a transition, got %v", newly)
	}
	if err := tr.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Run 2: still firing, must stay quiet.
	tr = NewTracker(path)
	if newly := tr.Observe("esp32-01", State{Reasons: []string{ReasonHighTemp}}); len(newly) != 0 {
		t.Errorf("persistent condition re-notified: %v", newly)
	}
	// A second condition joining fires on its own.
	if newly := tr.Observe("esp32-02", State{Reasons: []string{ReasonHighAQI}}); len(newly) != 1 {
		t.Errorf("new device did not notify: %v", newly)
	}
	if err := tr.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Run 3: device recovered, then run 4 fires again.
	tr = NewTracker(path)
	tr.Observe("esp32-01", State{})
	tr.Observe("esp32-02", State{})
	if err := tr.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	tr = NewTracker(path)
	if newly := tr.Observe("esp32-01", State{Reasons: []string{ReasonHighTemp}}); len(newly) != 1 {
		t.Errorf("re-firing after recovery should notify, got %v", newly)
	}
}

func TestTrackerMissingFile(t *testing.T) {
	tr := NewTracker(filepath.Join(t.TempDir(), "nope", "missing.json"))
	if newly := tr.Observe("dev", State{Reasons: []string{ReasonHighAQI}}); len(newly) != 1 {
		t.Errorf("missing state file should treat firing as new, got %v", newly)
	}
}
