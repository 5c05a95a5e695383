package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Environment string
	LogLevel    string
	HTTPAddr    string
	AdminToken  string
	DataDir     string

	SettingsPath   string
	CatalogBackend string // sqlite | file | redis
	DBPath         string
	CatalogPath    string
	RedisURL       string
	RedisKey       string
	CatalogRefresh string
	TranscriptRoot string

	DispatchConcurrency   int
	DispatchJobTimeoutSec int
	MaxParallelOCR        int

	SessionWindowSec     int
	SessionRequesterOnly bool
	DetectFailurePolicy  string // fallback | abort

	TranslateProvider   string // libre | openai | none
	TranslateBaseURL    string
	TranslateAPIKey     string
	TranslateModel      string
	TranslateTimeoutSec int

	OCRURL        string
	OCRTimeoutSec int

	HeartbeatEnabled     bool
	HeartbeatIntervalSec int
	HeartbeatStaleSec    int
	WatchSettings        bool
	OpsChannelID         string

	DiscordToken              string
	DiscordAPI                string
	DiscordWSURL              string
	DiscordApplicationID      string
	DiscordCommandGuildIDsCSV string
	CommandSyncEnabled        bool
}

func FromEnv() Config {
	dataDir := stringOrDefault("FIXDESK_DATA_DIR", "/data")

	return Config{
		Environment: stringOrDefault("FIXDESK_ENV", "development"),
		LogLevel:    stringOrDefault("FIXDESK_LOG_LEVEL", "info"),
		HTTPAddr:    stringOrDefault("FIXDESK_HTTP_ADDR", ":8080"),
		AdminToken:  strings.TrimSpace(os.Getenv("FIXDESK_ADMIN_TOKEN")),
		DataDir:     dataDir,

		SettingsPath:   stringOrDefault("FIXDESK_SETTINGS_PATH", filepath.Join(dataDir, "settings.yaml")),
		CatalogBackend: choiceOrDefault("FIXDESK_CATALOG_BACKEND", "sqlite", "sqlite", "file", "redis"),
		DBPath:         stringOrDefault("FIXDESK_DB_PATH", filepath.Join(dataDir, "fixdesk.sqlite")),
		CatalogPath:    stringOrDefault("FIXDESK_CATALOG_PATH", filepath.Join(dataDir, "data.json")),
		RedisURL:       stringOrDefault("FIXDESK_REDIS_URL", "redis://localhost:6379/0"),
		RedisKey:       stringOrDefault("FIXDESK_REDIS_KEY", "fixdesk:catalog"),
		CatalogRefresh: stringOrDefault("FIXDESK_CATALOG_REFRESH", "@every 5m"),
		TranscriptRoot: stringOrDefault("FIXDESK_TRANSCRIPT_ROOT", dataDir),

		DispatchConcurrency:   intOrDefault("FIXDESK_DISPATCH_CONCURRENCY", 4),
		DispatchJobTimeoutSec: intOrDefault("FIXDESK_DISPATCH_JOB_TIMEOUT_SECONDS", 120),
		MaxParallelOCR:        intOrDefault("FIXDESK_OCR_MAX_PARALLEL", 4),

		SessionWindowSec:     intOrDefault("FIXDESK_SESSION_WINDOW_SECONDS", 15),
		SessionRequesterOnly: boolOrDefault("FIXDESK_SESSION_REQUESTER_ONLY", true),
		DetectFailurePolicy:  choiceOrDefault("FIXDESK_DETECT_FAILURE_POLICY", "fallback", "fallback", "abort"),

		TranslateProvider:   choiceOrDefault("FIXDESK_TRANSLATE_PROVIDER", "libre", "libre", "openai", "none"),
		TranslateBaseURL:    strings.TrimSpace(os.Getenv("FIXDESK_TRANSLATE_BASE_URL")),
		TranslateAPIKey:     strings.TrimSpace(os.Getenv("FIXDESK_TRANSLATE_API_KEY")),
		TranslateModel:      stringOrDefault("FIXDESK_TRANSLATE_MODEL", "gpt-4o-mini"),
		TranslateTimeoutSec: intOrDefault("FIXDESK_TRANSLATE_TIMEOUT_SECONDS", 15),

		OCRURL:        strings.TrimSpace(os.Getenv("FIXDESK_OCR_URL")),
		OCRTimeoutSec: intOrDefault("FIXDESK_OCR_TIMEOUT_SECONDS", 60),

		HeartbeatEnabled:     boolOrDefault("FIXDESK_HEARTBEAT_ENABLED", true),
		HeartbeatIntervalSec: intOrDefault("FIXDESK_HEARTBEAT_INTERVAL_SECONDS", 30),
		HeartbeatStaleSec:    intOrDefault("FIXDESK_HEARTBEAT_STALE_SECONDS", 120),
		WatchSettings:        boolOrDefault("FIXDESK_WATCH_SETTINGS", true),
		OpsChannelID:         strings.TrimSpace(os.Getenv("FIXDESK_OPS_CHANNEL_ID")),

		DiscordToken:              strings.TrimSpace(os.Getenv("FIXDESK_DISCORD_TOKEN")),
		DiscordAPI:                stringOrDefault("FIXDESK_DISCORD_API_BASE", "https://discord.com/api/v10"),
		DiscordWSURL:              stringOrDefault("FIXDESK_DISCORD_GATEWAY_URL", "wss://gateway.discord.gg/?v=10&encoding=json"),
		DiscordApplicationID:      strings.TrimSpace(os.Getenv("FIXDESK_DISCORD_APPLICATION_ID")),
		DiscordCommandGuildIDsCSV: strings.TrimSpace(os.Getenv("FIXDESK_DISCORD_COMMAND_GUILD_IDS")),
		CommandSyncEnabled:        boolOrDefault("FIXDESK_COMMAND_SYNC_ENABLED", true),
	}
}

// CommandGuildIDs splits the comma separated guild id list.
func (c Config) CommandGuildIDs() []string {
	ids := []string{}
	for _, part := range strings.Split(c.DiscordCommandGuildIDsCSV, ",") {
		if value := strings.TrimSpace(part); value != "" {
			ids = append(ids, value)
		}
	}
	return ids
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func choiceOrDefault(name, fallback string, allowed ...string) string {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	for _, candidate := range allowed {
		if value == candidate {
			return value
		}
	}
	return fallback
}
