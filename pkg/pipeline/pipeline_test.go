package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sensordash/sensordash/pkg/alert"
	"github.com/sensordash/sensordash/pkg/archive"
	"github.com/sensordash/sensordash/pkg/archive/memory"
	"github.com/sensordash/sensordash/pkg/config"
	"github.com/sensordash/sensordash/pkg/pipeline"
	"github.com/sensordash/sensordash/pkg/snapshot"
	"github.com/sensordash/sensordash/pkg/source"
)

type fakeSource struct {
	table source.Table
	tab   string
	err   error
}

func (f fakeSource) Fetch(ctx context.Context) (source.Table, string, error) {
	return f.table, f.tab, f.err
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Send(ctx context.Context, deviceID, message string) error {
	f.messages = append(f.messages, message)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		RetentionDays: 90,
		RollingWindow: 200,
		AlertTempC:    30.0,
		AlertAQI:      600.0,
		DataDir:       dir,
		SnapshotDir:   filepath.Join(dir, "snapshot"),
		AssetsDir:     filepath.Join(dir, "assets"),
	}
}

func sheetTable() source.Table {
	return source.Table{
		Headers: []string{"Device ID", "Timestamp", "Temperature (°C)", "Humidity (%)", "AQI Value"},
		Rows: [][]string{
			{"sensor-a", "2024-07-01 10:00:00", "35", "40", "100"},
			{"sensor-a", "2024-07-01 09:00:00", "28", "41", "90"},
			{"sensor-b", "2024-07-01 10:00:00", "20", "42", "90"},
			{"nan", "2024-07-01 10:00:00", "1", "1", "1"},
		},
	}
}

func newRunner(t *testing.T, cfg *config.Config, src source.Source, store archive.Store, extra ...pipeline.Option) *pipeline.Runner {
	t.Helper()
	pub, err := snapshot.NewPublisher(cfg.SnapshotDir)
	require.NoError(t, err)
	tracker := alert.NewTracker(filepath.Join(cfg.DataDir, "alert_state.json"))

	clock := func() time.Time { return time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC) }
	opts := append([]pipeline.Option{pipeline.WithClock(clock)}, extra...)
	return pipeline.NewRunner(cfg, src, store, pub, tracker, opts...)
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	store := memory.New()
	notifier := &fakeNotifier{}
	src := fakeSource{table: sheetTable(), tab: "Jul2024"}

	runner := newRunner(t, cfg, src, store, pipeline.WithNotifiers(notifier))
	status, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, "Jul2024", status.Tab)
	require.Equal(t, 4, status.RowsFetched)
	require.Equal(t, 1, status.IdentityDropped)
	require.Equal(t, 2, status.Devices)
	require.Equal(t, 3, status.SnapshotRows)
	require.Empty(t, status.FailedCollaborators)

	// Only sensor-a crossed the temperature threshold; one message.
	require.Equal(t, 1, status.NotificationsSent)
	require.Len(t, notifier.messages, 1)
	require.Contains(t, notifier.messages[0], "sensor-a")
	require.Contains(t, notifier.messages[0], alert.ReasonHighTemp)
	require.NotContains(t, notifier.messages[0], "sensor-b")

	// Snapshot readable, rows carry the derived columns.
	reader := snapshot.NewReader(cfg.SnapshotDir)
	records, err := reader.Records()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "sensor-a", records[0]["device_id"])
	require.Contains(t, records[0]["alert_status"], alert.ReasonHighTemp)
	require.Equal(t, alert.NormalState, records[2]["alert_status"])
	require.NotEmpty(t, records[0]["timestamp_utc"])

	summary, err := reader.Summary()
	require.NoError(t, err)
	require.Len(t, summary, 2)
	require.Equal(t, "sensor-a", summary[0].DeviceID)
	require.Contains(t, summary[0].Alert, alert.ReasonHighTemp)

	// Archive holds both devices' July partitions.
	refs, err := store.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []archive.Ref{
		{DeviceID: "sensor-a", Period: "2024-07"},
		{DeviceID: "sensor-b", Period: "2024-07"},
	}, refs)

	recs, err := store.Load(context.Background(), refs[0])
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// Archived history holds raw readings. The derived columns only
	// exist on the published snapshot, not in the archive.
	for _, rec := range recs {
		require.NotContains(t, rec.Fields, "alert_status")
		require.NotContains(t, rec.Fields, "last_updated_utc")
	}
}

func TestRunNotificationsAreEdgeTriggered(t *testing.T) {
	cfg := testConfig(t)
	store := memory.New()
	notifier := &fakeNotifier{}
	src := fakeSource{table: sheetTable(), tab: "Jul2024"}

	runner := newRunner(t, cfg, src, store, pipeline.WithNotifiers(notifier))
	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, notifier.messages, 1)

	// Second run, same conditions: tracker state suppresses the repeat.
	runner = newRunner(t, cfg, src, store, pipeline.WithNotifiers(notifier))
	status, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, status.NotificationsSent)
	require.Len(t, notifier.messages, 1)
}

func TestRunIsIdempotentForArchive(t *testing.T) {
	cfg := testConfig(t)
	store := memory.New()
	src := fakeSource{table: sheetTable(), tab: "Jul2024"}

	_, err := newRunner(t, cfg, src, store).Run(context.Background())
	require.NoError(t, err)
	_, err = newRunner(t, cfg, src, store).Run(context.Background())
	require.NoError(t, err)

	recs, err := store.Load(context.Background(), archive.Ref{DeviceID: "sensor-a", Period: "2024-07"})
	require.NoError(t, err)
	require.Len(t, recs, 2, "re-running the same batch must not grow the archive")
}

func TestRunSourceUnavailable(t *testing.T) {
	cfg := testConfig(t)
	src := fakeSource{err: errors.New("connection refused")}

	_, err := newRunner(t, cfg, src, memory.New()).Run(context.Background())
	require.ErrorIs(t, err, pipeline.ErrSourceUnavailable)
}

func TestRunFailedRunPreservesSnapshot(t *testing.T) {
	cfg := testConfig(t)
	store := memory.New()
	src := fakeSource{table: sheetTable(), tab: "Jul2024"}

	_, err := newRunner(t, cfg, src, store).Run(context.Background())
	require.NoError(t, err)

	reader := snapshot.NewReader(cfg.SnapshotDir)
	manifest, ok, err := reader.Manifest()
	require.NoError(t, err)
	require.True(t, ok)
	records, err := reader.Records()
	require.NoError(t, err)

	// A later run that cannot reach the source leaves the published
	// snapshot exactly as it was.
	down := fakeSource{err: errors.New("connection refused")}
	_, err = newRunner(t, cfg, down, store).Run(context.Background())
	require.ErrorIs(t, err, pipeline.ErrSourceUnavailable)

	after, ok, err := reader.Manifest()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, manifest.Fingerprint, after.Fingerprint)

	afterRecords, err := reader.Records()
	require.NoError(t, err)
	require.Equal(t, records, afterRecords)
}

func TestRunSchemaMismatch(t *testing.T) {
	cfg := testConfig(t)
	src := fakeSource{
		table: source.Table{
			Headers: []string{"Timestamp", "Temperature (°C)"},
			Rows:    [][]string{{"2024-07-01 10:00:00", "25"}},
		},
		tab: "Jul2024",
	}

	_, err := newRunner(t, cfg, src, memory.New()).Run(context.Background())
	require.ErrorIs(t, err, pipeline.ErrSchemaMismatch)
}

func TestRunDegradedCollaboratorDoesNotFailRun(t *testing.T) {
	cfg := testConfig(t)
	src := fakeSource{table: sheetTable(), tab: "Jul2024"}

	failing := failingDashboard{}
	status, err := newRunner(t, cfg, src, memory.New(), pipeline.WithDashboard(failing)).Run(context.Background())
	require.NoError(t, err)
	require.Contains(t, status.FailedCollaborators, "dashboard")
}

type failingDashboard struct{}

func (failingDashboard) UpdateDashboard(ctx context.Context, body string) error {
	return errors.New("api down")
}
