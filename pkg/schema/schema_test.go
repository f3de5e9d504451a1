package schema

import (
	"errors"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"Device ID":          FieldDeviceID,
		"device_id":          FieldDeviceID,
		"DEVICE  ID ":        FieldDeviceID,
		"Sensor ID":          FieldDeviceID,
		"Timestamp":          FieldTimestamp,
		"DateTime":           FieldTimestamp,
		"Temperature (°C)":   FieldTemperature,
		"temp_c":             FieldTemperature,
		"Humidity (%)":       FieldHumidity,
		"Light (lux)":        FieldLight,
		"AQI Value":          FieldAQIValue,
		"Air Quality Status": FieldAQIStatus,
		"AQI Status":         FieldAQIStatus,
		"Device Health":      FieldDeviceHealth,
		"eCO₂ (ppm)":         FieldECO2,
		"eCO2":               FieldECO2,
	}
	for raw, want := range cases {
		if got := Canonicalize(raw); got != want {
			t.Errorf("Canonicalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	for _, name := range []string{FieldDeviceID, FieldTimestamp, FieldTemperature, FieldHumidity, FieldLight, FieldAQIValue, FieldAQIStatus, FieldDeviceHealth} {
		if got := Canonicalize(name); got != name {
			t.Errorf("Canonicalize(%q) = %q, expected canonical names to be fixed points", name, got)
		}
	}
}

func TestCanonicalizeUnknownPassesThrough(t *testing.T) {
	if got := Canonicalize("Battery  Voltage (mV)"); got != "Battery_Voltage" {
		t.Errorf("unknown header = %q, want normalized passthrough", got)
	}
}

func TestNormalizeHeadersRequiresDevice(t *testing.T) {
	_, err := NormalizeHeaders([]string{"Timestamp", "Temperature (°C)"})
	if !errors.Is(err, ErrNoDeviceColumn) {
		t.Fatalf("expected ErrNoDeviceColumn, got %v", err)
	}

	headers, err := NormalizeHeaders([]string{"Device ID", "Timestamp", "Temperature (°C)"})
	if err != nil {
		t.Fatalf("NormalizeHeaders failed: %v", err)
	}
	want := []string{FieldDeviceID, FieldTimestamp, FieldTemperature}
	for i := range want {
		if headers[i] != want[i] {
			t.Errorf("header %d = %q, want %q", i, headers[i], want[i])
		}
	}
}

func TestFold(t *testing.T) {
	if Fold("ESP32-01") != Fold("esp32_01") {
		t.Error("expected separator-insensitive folding")
	}
	if Fold("ESP32 01") != "esp3201" {
		t.Errorf("Fold = %q", Fold("ESP32 01"))
	}
}
