package query

import (
	"context"
	"log"
	"time"

	"github.com/sensordash/sensordash/pkg/config"
	"github.com/sensordash/sensordash/pkg/snapshot"
)

// RefreshEvent is broadcast to WebSocket subscribers when the snapshot
// fingerprint changes.
type RefreshEvent struct {
	Type        string    `json:"type"`
	UpdatedAt   time.Time `json:"updated_at"`
	Fingerprint string    `json:"fingerprint"`
	Devices     int       `json:"devices"`
	Rows        int       `json:"rows"`
}

// Watcher polls the snapshot manifest and announces fingerprint changes
// through a RefreshHub.
type Watcher struct {
	reader *snapshot.Reader
	hub    *RefreshHub
	period time.Duration

	lastFingerprint string
}

// NewWatcher creates a watcher over the snapshot directory.
func NewWatcher(snapshotDir string, hub *RefreshHub) *Watcher {
	return &Watcher{
		reader: snapshot.NewReader(snapshotDir),
		hub:    hub,
		period: config.SnapshotWatchPeriod,
	}
}

// Run polls until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	w.check() // prime so a pre-existing snapshot is not announced as new

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if event, changed := w.check(); changed {
				log.Printf("📡 snapshot refreshed (%d rows across %d devices)", event.Rows, event.Devices)
				if err := w.hub.Broadcast(event); err != nil {
					log.Printf("⚠️  Broadcasting refresh event failed: %v", err)
				}
			}
		}
	}
}

// check reads the manifest and reports whether the fingerprint moved.
func (w *Watcher) check() (RefreshEvent, bool) {
	m, ok, err := w.reader.Manifest()
	if err != nil || !ok {
		return RefreshEvent{}, false
	}
	if m.Fingerprint == w.lastFingerprint {
		return RefreshEvent{}, false
	}
	prev := w.lastFingerprint
	w.lastFingerprint = m.Fingerprint
	if prev == "" {
		// First observation; nothing to announce.
		return RefreshEvent{}, false
	}
	return RefreshEvent{
		Type:        "snapshot_refreshed",
		UpdatedAt:   m.UpdatedAt,
		Fingerprint: m.Fingerprint,
		Devices:     len(m.Devices),
		Rows:        m.Rows,
	}, true
}
