package main

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/sensordash/sensordash/pkg/alert"
	"github.com/sensordash/sensordash/pkg/archive"
	archivebadger "github.com/sensordash/sensordash/pkg/archive/badger"
	archivefs "github.com/sensordash/sensordash/pkg/archive/fs"
	"github.com/sensordash/sensordash/pkg/config"
	"github.com/sensordash/sensordash/pkg/notify"
	"github.com/sensordash/sensordash/pkg/pipeline"
	"github.com/sensordash/sensordash/pkg/report"
	"github.com/sensordash/sensordash/pkg/snapshot"
	"github.com/sensordash/sensordash/pkg/source"
)

func main() {
	log.Println("🚀 Starting sensordash refresh...")

	cfg := config.Load()
	if cfg.SourceURL == "" {
		log.Fatal("❌ SENSORDASH_SOURCE_URL is required")
	}

	for _, dir := range []string{cfg.DataDir, cfg.SnapshotDir, cfg.AssetsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("❌ Failed to create directory %s: %v", dir, err)
		}
	}

	store, err := openArchive(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open archive: %v", err)
	}
	defer store.Close()
	log.Printf("💾 Archive backend: %s", cfg.ArchiveBackend)

	publisher, err := snapshot.NewPublisher(cfg.SnapshotDir)
	if err != nil {
		log.Fatalf("❌ Failed to prepare snapshot directory: %v", err)
	}

	tracker := alert.NewTracker(filepath.Join(cfg.DataDir, "alert_state.json"))
	src := source.NewClient(cfg.SourceURL, cfg.SheetTab, config.SourceFetchTimeout)

	opts := []pipeline.Option{}
	if ns, cleanup := buildNotifiers(cfg); len(ns) > 0 {
		defer cleanup()
		opts = append(opts, pipeline.WithNotifiers(ns...))
	}
	if cfg.GitHubRepo != "" && cfg.GitHubToken != "" {
		gh := notify.NewGitHub(cfg.GitHubRepo, cfg.IssueNumber, cfg.GitHubToken, report.Marker, config.NotifyTimeout)
		opts = append(opts, pipeline.WithDashboard(gh), pipeline.WithUploader(gh))
		log.Printf("💬 GitHub dashboard enabled for %s issue %s", cfg.GitHubRepo, cfg.IssueNumber)
	}

	runner := pipeline.NewRunner(cfg, src, store, publisher, tracker, opts...)

	status, err := runner.Run(context.Background())
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrSourceUnavailable):
			log.Printf("❌ Refresh aborted, source unavailable: %v", err)
		case errors.Is(err, pipeline.ErrSchemaMismatch):
			log.Printf("❌ Refresh aborted, schema mismatch: %v", err)
		default:
			log.Printf("❌ Refresh failed: %v", err)
		}
		os.Exit(1)
	}

	if len(status.FailedCollaborators) > 0 {
		log.Printf("⚠️ Run completed with degraded collaborators: %v", status.FailedCollaborators)
	}
	log.Println("👋 Refresh finished")
}

// openArchive picks the archive store backend from configuration.
func openArchive(cfg *config.Config) (archive.Store, error) {
	switch cfg.ArchiveBackend {
	case "badger":
		return archivebadger.New(archivebadger.Config{
			Path: filepath.Join(cfg.DataDir, "archive-badger"),
		})
	default:
		return archivefs.New(filepath.Join(cfg.DataDir, "archive"))
	}
}

// buildNotifiers wires every alert channel that has credentials
// configured. Missing credentials simply skip the channel.
func buildNotifiers(cfg *config.Config) ([]notify.Notifier, func()) {
	var (
		ns      []notify.Notifier
		cleanup = func() {}
	)

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		ns = append(ns, notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, config.NotifyTimeout))
		log.Println("📨 Telegram notifier enabled")
	}

	if cfg.MQTTBroker != "" {
		m, err := notify.NewMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTAlertTopic, config.NotifyTimeout)
		if err != nil {
			log.Printf("⚠️ MQTT notifier unavailable: %v", err)
		} else {
			ns = append(ns, m)
			cleanup = m.Close
			log.Printf("📨 MQTT notifier enabled (broker %s)", cfg.MQTTBroker)
		}
	}

	return ns, cleanup
}
