package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// Fatal error kinds. Only these two halt the run; everything else
// degrades gracefully and shows up in the RunStatus counts.
var (
	// ErrSourceUnavailable means the upstream fetch failed or returned
	// unusable data. The previous snapshot keeps serving.
	ErrSourceUnavailable = errors.New("upstream source unavailable")

	// ErrSchemaMismatch means required canonical columns (notably the
	// device identity) were absent after normalization.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// RunStatus is the end-of-run summary of one pipeline invocation.
type RunStatus struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	Tab        string    `json:"tab"`
	Convention string    `json:"timestamp_convention"`

	RowsFetched       int `json:"rows_fetched"`
	TimestampFailures int `json:"timestamp_failures"`
	RetentionDropped  int `json:"retention_dropped"`
	IdentityDropped   int `json:"identity_dropped"`
	Devices           int `json:"devices"`
	SnapshotRows      int `json:"snapshot_rows"`

	ArchivedPartitions int `json:"archived_partitions"`
	ArchiveRecovered   int `json:"archive_recovered"`

	NotificationsSent   int      `json:"notifications_sent"`
	FailedCollaborators []string `json:"failed_collaborators,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Summary renders the one-line log form of the status.
func (s *RunStatus) Summary() string {
	return fmt.Sprintf(
		"run %s: tab=%q devices=%d rows=%d (identity dropped=%d, retention dropped=%d, bad timestamps=%d) archived=%d recovered=%d notified=%d failed=%v in %v",
		s.RunID, s.Tab, s.Devices, s.SnapshotRows, s.IdentityDropped, s.RetentionDropped,
		s.TimestampFailures, s.ArchivedPartitions, s.ArchiveRecovered,
		s.NotificationsSent, s.FailedCollaborators, s.Duration.Round(time.Millisecond),
	)
}
