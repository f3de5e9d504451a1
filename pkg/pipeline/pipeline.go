package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sensordash/sensordash/pkg/alert"
	"github.com/sensordash/sensordash/pkg/archive"
	"github.com/sensordash/sensordash/pkg/chart"
	"github.com/sensordash/sensordash/pkg/config"
	"github.com/sensordash/sensordash/pkg/notify"
	"github.com/sensordash/sensordash/pkg/partition"
	"github.com/sensordash/sensordash/pkg/reading"
	"github.com/sensordash/sensordash/pkg/report"
	"github.com/sensordash/sensordash/pkg/retention"
	"github.com/sensordash/sensordash/pkg/schema"
	"github.com/sensordash/sensordash/pkg/snapshot"
	"github.com/sensordash/sensordash/pkg/source"
	"github.com/sensordash/sensordash/pkg/timeparse"
)

// Columns the pipeline appends to every published row.
const (
	ColTimestampUTC   = "timestamp_utc"
	ColAlertStatus    = "alert_status"
	ColLastUpdatedUTC = "last_updated_utc"
)

// DashboardPoster publishes the composed dashboard body somewhere
// human-visible. notify.GitHub satisfies it.
type DashboardPoster interface {
	UpdateDashboard(ctx context.Context, body string) error
}

// AssetUploader stores a rendered chart and returns a public URL for it.
type AssetUploader interface {
	UploadAsset(ctx context.Context, path string, content []byte, message string) (string, error)
}

// Runner wires one refresh pass end to end.
type Runner struct {
	cfg       *config.Config
	src       source.Source
	store     archive.Store
	publisher *snapshot.Publisher
	tracker   *alert.TransitionTracker
	notifiers []notify.Notifier
	dashboard DashboardPoster
	uploader  AssetUploader

	now func() time.Time
}

// Option configures optional collaborators on a Runner.
type Option func(*Runner)

// WithNotifiers sets the alert fan-out targets.
func WithNotifiers(ns ...notify.Notifier) Option {
	return func(r *Runner) { r.notifiers = ns }
}

// WithDashboard sets the dashboard comment target.
func WithDashboard(d DashboardPoster) Option {
	return func(r *Runner) { r.dashboard = d }
}

// WithUploader sets the chart asset target.
func WithUploader(u AssetUploader) Option {
	return func(r *Runner) { r.uploader = u }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner builds a Runner around the given source, archive store and
// snapshot publisher.
func NewRunner(cfg *config.Config, src source.Source, store archive.Store, pub *snapshot.Publisher, tracker *alert.TransitionTracker, opts ...Option) *Runner {
	r := &Runner{
		cfg:       cfg,
		src:       src,
		store:     store,
		publisher: pub,
		tracker:   tracker,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a single refresh pass. It returns a non-nil RunStatus
// whenever the fetch succeeded, even if later stages degraded.
func (r *Runner) Run(ctx context.Context) (*RunStatus, error) {
	started := r.now().UTC()
	status := &RunStatus{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}
	log.Printf("🚀 refresh run %s starting", status.RunID)

	table, tab, err := r.src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	status.Tab = tab
	status.RowsFetched = len(table.Rows)
	log.Printf("📥 fetched %d rows from tab %q", len(table.Rows), tab)

	headers, err := schema.NormalizeHeaders(table.Headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}

	readings := buildReadings(headers, table.Rows)
	status.TimestampFailures, status.Convention = resolveTimestamps(readings)
	if status.TimestampFailures > 0 {
		log.Printf("⚠️ %d rows with unparseable timestamps (convention=%s)", status.TimestampFailures, status.Convention)
	}

	cutoff := retention.Cutoff(started, r.cfg.RetentionDays)
	kept := retention.FilterAge(readings, cutoff)
	status.RetentionDropped = len(readings) - len(kept)

	parts := partition.ByDevice(kept)
	status.IdentityDropped = parts.Dropped
	status.Devices = len(parts.Order)
	log.Printf("🗂️ %d devices after partitioning (%d rows dropped for identity)", status.Devices, parts.Dropped)

	thresholds := alert.Thresholds{TempC: r.cfg.AlertTempC, AQI: r.cfg.AlertAQI}
	updatedUTC := started.Format("2006-01-02 15:04:05") + " UTC"

	var (
		published []reading.Reading
		summary   []reading.SummaryRow
		sections  []string
		firing    = map[string]alert.State{}
	)
	for _, id := range parts.Order {
		rows := parts.Devices[id]

		// The archive keeps full post-retention history; the rolling
		// cap only bounds what the snapshot publishes.
		res, err := r.mergeArchive(ctx, id, rows)
		if err != nil {
			return nil, err
		}
		status.ArchivedPartitions += len(res)
		for _, mr := range res {
			if mr.Recovered {
				status.ArchiveRecovered++
			}
		}

		rows = retention.Cap(rows, r.cfg.RollingWindow)
		for i := range rows {
			st := alert.Evaluate(rows[i], thresholds)
			rows[i].Fields[schema.FieldDeviceID] = id
			rows[i].Fields[ColAlertStatus] = st.String()
			rows[i].Fields[ColLastUpdatedUTC] = updatedUTC
			if rows[i].HasTimestamp {
				rows[i].Fields[ColTimestampUTC] = rows[i].Timestamp.UTC().Format(time.RFC3339)
			}
		}
		published = append(published, rows...)

		latest := rows[0]
		latestState := alert.Evaluate(latest, thresholds)
		firing[id] = latestState
		summary = append(summary, summarize(id, latest, latestState))
		sections = append(sections, report.ComposeDevice(report.DeviceSection{
			DeviceID:   id,
			Latest:     latest,
			State:      latestState,
			ChartURL:   r.renderChart(ctx, id, rows),
			UpdatedUTC: updatedUTC,
		}, thresholds))
	}

	snap := snapshot.Snapshot{
		UpdatedAt: started,
		Columns:   publishColumns(headers),
		Parts:     parts,
		Summary:   summary,
	}
	snap.Parts.Devices = regroup(published, parts.Order)
	if _, err := r.publisher.Publish(snap); err != nil {
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}
	status.SnapshotRows = len(published)
	log.Printf("📸 snapshot published: %d rows across %d devices", len(published), status.Devices)

	status.NotificationsSent, status.FailedCollaborators = r.notifyTransitions(ctx, parts.Order, firing, updatedUTC)

	if r.dashboard != nil {
		body := report.ComposeDashboard(sections, updatedUTC)
		if err := r.dashboard.UpdateDashboard(ctx, body); err != nil {
			log.Printf("⚠️ dashboard update failed: %v", err)
			status.FailedCollaborators = append(status.FailedCollaborators, "dashboard")
		}
	}

	status.Duration = r.now().UTC().Sub(started)
	log.Printf("✅ %s", status.Summary())
	return status, nil
}

func (r *Runner) mergeArchive(ctx context.Context, id string, rows []reading.Reading) ([]archive.MergeResult, error) {
	merger := archive.NewMerger(r.store)
	res, err := merger.MergeDevice(ctx, id, rows, r.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("archive device %s: %w", id, err)
	}
	return res, nil
}

// notifyTransitions fans out alert messages for reasons that newly
// fired this run, then persists the transition state.
func (r *Runner) notifyTransitions(ctx context.Context, order []string, firing map[string]alert.State, updatedUTC string) (sent int, failed []string) {
	for _, id := range order {
		st := firing[id]
		newly := r.tracker.Observe(id, st)
		if len(newly) == 0 || len(r.notifiers) == 0 {
			continue
		}
		msg := report.AlertMessage(id, st, updatedUTC)
		bad := notify.Fanout(ctx, r.notifiers, id, msg)
		failed = append(failed, bad...)
		sent += len(r.notifiers) - len(bad)
	}
	if err := r.tracker.Save(); err != nil {
		log.Printf("⚠️ persisting alert state failed: %v", err)
		failed = append(failed, "alert-state")
	}
	return sent, dedupe(failed)
}

// renderChart draws the recent temperature/AQI trend for a device and,
// when an uploader is wired, publishes it and returns its URL.
func (r *Runner) renderChart(ctx context.Context, id string, rows []reading.Reading) string {
	n := config.ChartPoints
	if len(rows) < n {
		n = len(rows)
	}
	if n < 2 {
		return ""
	}
	temp := make([]float64, 0, n)
	aqi := make([]float64, 0, n)
	for i := n - 1; i >= 0; i-- { // oldest first
		if v, ok := rows[i].Float(schema.FieldTemperature); ok {
			temp = append(temp, v)
		}
		if v, ok := rows[i].Float(schema.FieldAQIValue); ok {
			aqi = append(aqi, v)
		}
	}
	series := []chart.Series{}
	if len(temp) >= 2 {
		series = append(series, chart.Series{Label: "Temperature (°C)", Values: temp})
	}
	if len(aqi) >= 2 {
		series = append(series, chart.Series{Label: "AQI", Values: aqi})
	}
	if len(series) == 0 {
		return ""
	}
	svg := chart.RenderTrend(fmt.Sprintf("%s recent trend", id), series, config.ChartWidth, config.ChartHeight)

	if r.cfg.AssetsDir != "" {
		local := filepath.Join(r.cfg.AssetsDir, fmt.Sprintf("%s_trend.svg", id))
		if err := os.WriteFile(local, svg, 0o644); err != nil {
			log.Printf("⚠️ writing chart for %s failed: %v", id, err)
		}
	}

	if r.uploader == nil {
		return ""
	}
	path := fmt.Sprintf("%s/%s_trend.svg", r.cfg.GitHubAssets, id)
	uctx, cancel := context.WithTimeout(ctx, config.AssetUploadTimeout)
	defer cancel()
	url, err := r.uploader.UploadAsset(uctx, path, svg, fmt.Sprintf("update %s trend chart", id))
	if err != nil {
		log.Printf("⚠️ chart upload for %s failed: %v", id, err)
		return ""
	}
	return url
}

// buildReadings turns raw cells into Readings keyed by canonical column
// name. When two raw headers collapse to the same canonical name the
// first occurrence wins.
func buildReadings(headers []string, rows [][]string) []reading.Reading {
	out := make([]reading.Reading, 0, len(rows))
	for _, row := range rows {
		fields := make(map[string]string, len(headers))
		for i, h := range headers {
			if i >= len(row) {
				break
			}
			if _, dup := fields[h]; dup {
				continue
			}
			fields[h] = row[i]
		}
		out = append(out, reading.Reading{
			DeviceID:     fields[schema.FieldDeviceID],
			RawTimestamp: fields[schema.FieldTimestamp],
			Fields:       fields,
		})
	}
	return out
}

// resolveTimestamps parses every raw timestamp with the batch
// convention heuristic and writes the results back onto the readings.
func resolveTimestamps(readings []reading.Reading) (failures int, convention string) {
	raw := make([]string, len(readings))
	for i := range readings {
		raw[i] = readings[i].RawTimestamp
	}
	results, conv := timeparse.ResolveBatch(raw)
	for i := range readings {
		readings[i].Timestamp = results[i].Time
		readings[i].HasTimestamp = results[i].OK
		if !results[i].OK {
			failures++
		}
	}
	return failures, conv.String()
}

// publishColumns is the snapshot column order: canonical source columns
// minus the dropped CO₂ channel, plus the pipeline-owned extras.
func publishColumns(headers []string) []string {
	cols := make([]string, 0, len(headers)+3)
	seen := map[string]bool{}
	for _, h := range headers {
		if h == schema.FieldECO2 || seen[h] {
			continue
		}
		seen[h] = true
		cols = append(cols, h)
	}
	for _, extra := range []string{ColTimestampUTC, ColAlertStatus, ColLastUpdatedUTC} {
		if !seen[extra] {
			cols = append(cols, extra)
		}
	}
	return cols
}

func summarize(id string, latest reading.Reading, st alert.State) reading.SummaryRow {
	return reading.SummaryRow{
		DeviceID:     id,
		Timestamp:    latest.FieldOr(ColTimestampUTC, latest.RawTimestamp),
		Temperature:  latest.Field(schema.FieldTemperature),
		Humidity:     latest.Field(schema.FieldHumidity),
		Light:        latest.Field(schema.FieldLight),
		AQIValue:     latest.Field(schema.FieldAQIValue),
		AQIStatus:    latest.Field(schema.FieldAQIStatus),
		DeviceHealth: latest.Field(schema.FieldDeviceHealth),
		Alert:        st.String(),
	}
}

func regroup(rows []reading.Reading, order []string) map[string][]reading.Reading {
	byID := make(map[string][]reading.Reading, len(order))
	for _, r := range rows {
		byID[r.DeviceID] = append(byID[r.DeviceID], r)
	}
	return byID
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
