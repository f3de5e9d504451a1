package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the single configuration struct for both binaries. It is
// built once at process start and passed into every component; nothing
// below pkg/config reads the environment directly.
type Config struct {
	// Upstream tabular source
	SourceURL string // base URL of the authenticated sheet endpoint
	SheetTab  string // preferred worksheet tab; falls back to most recent

	// Pipeline bounds
	RetentionDays int // drop readings older than this many days
	RollingWindow int // max readings kept per device in the snapshot

	// Alert thresholds
	AlertTempC float64 // temperature alert, exclusive >
	AlertAQI   float64 // AQI alert, inclusive >=

	// Artifact locations
	DataDir        string // archive partitions + alert state
	SnapshotDir    string // published snapshot CSVs + manifest
	AssetsDir      string // rendered trend charts
	ArchiveBackend string // "csv" or "badger"

	// GitHub dashboard comment
	GitHubRepo   string // "owner/repo"
	GitHubToken  string
	IssueNumber  string
	GitHubAssets string // path inside the repo for chart uploads

	// Telegram alerts
	TelegramBotToken string
	TelegramChatID   string

	// MQTT alert channel
	MQTTBroker     string
	MQTTClientID   string
	MQTTAlertTopic string // e.g. "alerts/{device_id}"

	// Query API
	Port string
}

// Load reads configuration from the environment, with a .env file as a
// convenience for local runs.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		SourceURL: getEnv("SENSORDASH_SOURCE_URL", ""),
		SheetTab:  getEnv("SENSORDASH_SHEET_TAB", ""),

		RetentionDays: getEnvInt("SENSORDASH_RETENTION_DAYS", DefaultRetentionDays),
		RollingWindow: getEnvInt("SENSORDASH_ROLLING_WINDOW", DefaultRollingWindow),

		AlertTempC: getEnvFloat("SENSORDASH_ALERT_TEMP", DefaultAlertTempC),
		AlertAQI:   getEnvFloat("SENSORDASH_ALERT_AQI", DefaultAlertAQI),

		DataDir:        getEnv("SENSORDASH_DATA_DIR", "./data/sensordash"),
		SnapshotDir:    getEnv("SENSORDASH_SNAPSHOT_DIR", "./data/sensordash/snapshot"),
		AssetsDir:      getEnv("SENSORDASH_ASSETS_DIR", "./data/sensordash/assets"),
		ArchiveBackend: getEnv("SENSORDASH_ARCHIVE_BACKEND", "csv"),

		GitHubRepo:   getEnv("GITHUB_REPOSITORY", ""),
		GitHubToken:  getEnv("GITHUB_TOKEN", ""),
		IssueNumber:  getEnv("ISSUE_NUMBER", "1"),
		GitHubAssets: getEnv("SENSORDASH_GITHUB_ASSETS", "assets/iot_dashboards"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		MQTTBroker:     getEnv("MQTT_BROKER", ""),
		MQTTClientID:   getEnv("MQTT_CLIENT_ID", "sensordash-refresh"),
		MQTTAlertTopic: getEnv("MQTT_ALERT_TOPIC", "alerts/{device_id}"),

		Port: getEnv("PORT", DefaultPort),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: failed to parse %s as float, using default: %v", key, err)
		return defaultValue
	}
	return parsed
}
