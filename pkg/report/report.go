// Package report assembles the human-readable dashboard: one markdown
// document with an embedded marker token so the GitHub collaborator can
// find and update its comment in place, plus per-device collapsible
// sections with colorized indicators and a trend chart reference.
package report

import (
	"fmt"
	"strings"

	"github.com/sensordash/sensordash/pkg/alert"
	"github.com/sensordash/sensordash/pkg/reading"
	"github.com/sensordash/sensordash/pkg/schema"
)

// Marker identifies the dashboard comment across runs.
const Marker = "<!-- IoT_SENSOR_DASHBOARD -->"

// DeviceSection is the input for one device's report block.
type DeviceSection struct {
	DeviceID   string
	Latest     reading.Reading
	State      alert.State
	ChartURL   string // empty when no chart is available
	UpdatedUTC string
}

// Indicator renders one metric value with its severity glyph.
func Indicator(raw string, threshold float64, unit string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = "N/A"
	}
	switch alert.ClassifyValue(raw, threshold) {
	case alert.SevAlert:
		return fmt.Sprintf("🔴 **%s%s**", value, unit)
	case alert.SevWarning:
		return fmt.Sprintf("🟠 %s%s", value, unit)
	case alert.SevNormal:
		return fmt.Sprintf("🟢 %s%s", value, unit)
	default:
		return fmt.Sprintf("🔸 %s%s", value, unit)
	}
}

// ComposeDevice renders one device's section.
func ComposeDevice(sec DeviceSection, th alert.Thresholds) string {
	latest := sec.Latest
	tempDisplay := Indicator(latest.Field(schema.FieldTemperature), th.TempC, "°C")
	aqiDisplay := Indicator(latest.Field(schema.FieldAQIValue), th.AQI, "")

	chartMD := "_No chart available._"
	if sec.ChartURL != "" {
		chartMD = fmt.Sprintf("![Sensor Trends](%s)", sec.ChartURL)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<details>\n<summary>🧠 **%s** — %s</summary>\n\n", sec.DeviceID, sec.State)
	fmt.Fprintf(&b, "_Last updated (UTC): **%s**_\n\n", sec.UpdatedUTC)
	b.WriteString("| Metric | Value | Status |\n|:-------|:------|:-------|\n")
	fmt.Fprintf(&b, "| Temperature | %s | %s |\n", tempDisplay, statusCell(tempDisplay))
	fmt.Fprintf(&b, "| Humidity | 💧 %s | ✅ Normal |\n", latest.FieldOr(schema.FieldHumidity, "N/A"))
	fmt.Fprintf(&b, "| Light | 💡 %s | ✅ Normal |\n", latest.FieldOr(schema.FieldLight, "N/A"))
	fmt.Fprintf(&b, "| AQI | %s | %s |\n", aqiDisplay, statusCell(aqiDisplay))
	fmt.Fprintf(&b, "| AQI Status | 🌫️ %s |  |\n", latest.FieldOr(schema.FieldAQIStatus, "N/A"))
	fmt.Fprintf(&b, "| Device Health | ⚙️ %s |  |\n", latest.FieldOr(schema.FieldDeviceHealth, "N/A"))
	fmt.Fprintf(&b, "| Overall Alert | %s |  |\n", sec.State)
	fmt.Fprintf(&b, "\n#### 📊 Trend (Last readings)\n%s\n\n</details>\n", chartMD)
	return b.String()
}

// ComposeDashboard renders the full marked dashboard document.
func ComposeDashboard(sections []string, updatedUTC string) string {
	var b strings.Builder
	b.WriteString(Marker)
	b.WriteString("\n\n# 🌡️ IoT Sensor Monitoring Dashboard\n\n")
	fmt.Fprintf(&b, "_Last update (UTC): **%s**_\n\n", updatedUTC)
	fmt.Fprintf(&b, "**Devices monitored:** %d\n\n---\n", len(sections))
	for _, sec := range sections {
		b.WriteString("\n")
		b.WriteString(sec)
	}
	b.WriteString("\n---\n\n_This comment is auto-generated by the sensordash refresh pipeline._\n")
	return b.String()
}

// AlertMessage renders the text dispatched to notification channels
// when a device newly crosses into alert.
func AlertMessage(deviceID string, st alert.State, updatedUTC string) string {
	return fmt.Sprintf("⚠️ Alert for %s: %s\nLast update (UTC): %s", deviceID, st, updatedUTC)
}

// statusCell mirrors the indicator into the status column.
func statusCell(display string) string {
	if strings.Contains(display, "🔴") {
		return "⚠️ Alert"
	}
	return "✅ Normal"
}
