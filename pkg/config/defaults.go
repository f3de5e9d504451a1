package config

import "time"

// Server defaults
const (
	DefaultPort = "8080"
)

// Pipeline defaults
const (
	DefaultRetentionDays = 90
	DefaultRollingWindow = 200
)

// Alert thresholds (match the deployed dashboard)
const (
	DefaultAlertTempC = 30.0
	DefaultAlertAQI   = 600.0

	// WarnFraction marks the display-only warning tier: a metric at or
	// above this fraction of its threshold renders amber but does not fire.
	WarnFraction = 0.8
)

// Collaborator timeouts. Only the source fetch and archive write are
// load-bearing; everything else is best-effort within these bounds.
const (
	SourceFetchTimeout  = 15 * time.Second
	NotifyTimeout       = 10 * time.Second
	AssetUploadTimeout  = 20 * time.Second
	ArchiveWriteTimeout = 30 * time.Second
)

// Query API timeouts and limits
const (
	QueryReadTimeout    = 10 * time.Second
	QueryWriteTimeout   = 10 * time.Second
	QueryShutdownWait   = 30 * time.Second
	QueryDefaultTail    = 100 // rows returned by /v1/data/json without ?limit
	QueryMaxTail        = 5000
	SnapshotWatchPeriod = 10 * time.Second
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 64
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)

// Chart rendering
const (
	ChartPoints = 10 // last N readings per trend chart
	ChartWidth  = 600
	ChartHeight = 300
)
