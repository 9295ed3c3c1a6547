package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Environment
	IsProd bool `json:"is_prod"`

	// Admin backend API
	Backend BackendConfig `json:"backend"`

	// Polling intervals and freshness bands
	Poll PollConfig `json:"poll"`

	// Feature drift scanning
	Drift DriftConfig `json:"drift"`

	// Backfill run stream
	Stream StreamConfig `json:"stream"`

	// Discord
	Discord DiscordConfig `json:"discord"`

	// Telegram
	Telegram TelegramConfig `json:"telegram"`

	// Local UI preference persistence
	Prefs PrefsConfig `json:"prefs"`

	// Stats server
	StatsServer StatsServerConfig `json:"stats_server"`
}

// BackendConfig points at the admin backend serving the REST and SSE surface.
type BackendConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// PollConfig holds per-monitor poll intervals and the freshness bands used by
// the staleness classifier.
type PollConfig struct {
	DriftInterval  time.Duration `json:"drift_interval"`
	RunsInterval   time.Duration `json:"runs_interval"`
	ModelsInterval time.Duration `json:"models_interval"`
	HealthInterval time.Duration `json:"health_interval"`

	FreshThreshold time.Duration `json:"fresh_threshold"` // age <= this is FRESH
	StaleThreshold time.Duration `json:"stale_threshold"` // age > this is STALE
}

// DriftConfig holds feature drift scan parameters.
type DriftConfig struct {
	Window     int      `json:"window"`      // samples per scan window
	Features   []string `json:"features"`    // feature names to scan
	Threshold  float64  `json:"threshold"`   // requested z-score threshold
	HistoryCap int      `json:"history_cap"` // bounded scan-summary history
}

// StreamConfig holds the backfill run SSE stream parameters.
type StreamConfig struct {
	Symbol           string        `json:"symbol"`
	Interval         string        `json:"interval"`
	Status           string        `json:"status"`
	Limit            int           `json:"limit"`
	HeartbeatTimeout time.Duration `json:"heartbeat_timeout"`
}

// DiscordConfig holds Discord-related configuration.
type DiscordConfig struct {
	BotToken      string `json:"-"` // Excluded - env var only
	ProdChannelID string `json:"prod_channel_id"`
	BetaChannelID string `json:"beta_channel_id"`
}

// TelegramConfig holds Telegram-related configuration.
type TelegramConfig struct {
	BotToken   string `json:"-"` // Excluded - env var only
	ProdChatID string `json:"prod_chat_id"`
	BetaChatID string `json:"beta_chat_id"`
}

// PrefsConfig holds local preference store configuration.
type PrefsConfig struct {
	Path string `json:"path"` // JSON file backing the store; empty = memory only
}

// StatsServerConfig holds local stats/health server configuration.
type StatsServerConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// Load builds a Config from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		IsProd: envBool("STAGE", "PROD"),

		Backend: BackendConfig{
			BaseURL: envString("ADMIN_API_URL", "http://127.0.0.1:8000"),
			Timeout: envDuration("ADMIN_API_TIMEOUT", 15*time.Second),
		},

		Poll: PollConfig{
			DriftInterval:  envDuration("DRIFT_POLL_INTERVAL", 30*time.Second),
			RunsInterval:   envDuration("RUNS_POLL_INTERVAL", 10*time.Second),
			ModelsInterval: envDuration("MODELS_POLL_INTERVAL", 30*time.Second),
			HealthInterval: envDuration("HEALTH_POLL_INTERVAL", 15*time.Second),
			FreshThreshold: envDuration("FRESH_THRESHOLD", 20*time.Second),
			StaleThreshold: envDuration("STALE_THRESHOLD", 2*time.Minute),
		},

		Drift: DriftConfig{
			Window:     envInt("DRIFT_WINDOW", 200),
			Features:   envStringSliceDefault("DRIFT_FEATURES", []string{"close", "volume", "rsi", "spread"}),
			Threshold:  envFloat("DRIFT_THRESHOLD", 3.0),
			HistoryCap: envInt("DRIFT_HISTORY_CAP", 200),
		},

		Stream: StreamConfig{
			Symbol:           envString("STREAM_SYMBOL", ""),
			Interval:         envString("STREAM_INTERVAL", ""),
			Status:           envString("STREAM_STATUS", ""),
			Limit:            envInt("STREAM_LIMIT", 50),
			HeartbeatTimeout: envDuration("STREAM_HEARTBEAT_TIMEOUT", 20*time.Second),
		},

		Discord: DiscordConfig{
			BotToken:      envString("DISCORD_BOT_TOKEN", ""),
			ProdChannelID: envString("DISCORD_PROD_CHANNEL_ID", ""),
			BetaChannelID: envString("DISCORD_BETA_CHANNEL_ID", ""),
		},

		Telegram: TelegramConfig{
			BotToken:   envString("TELEGRAM_BOT_KEY", ""),
			ProdChatID: envString("TELEGRAM_PROD_CHAT_ID", ""),
			BetaChatID: envString("TELEGRAM_BETA_CHAT_ID", ""),
		},

		Prefs: PrefsConfig{
			Path: envString("PREFS_PATH", defaultPrefsPath()),
		},

		StatsServer: StatsServerConfig{
			Enabled: envBoolDefault("STATS_SERVER_ENABLED", true),
			Port:    envInt("STATS_SERVER_PORT", 8085),
		},
	}
}

// defaultPrefsPath places the preference file under the user config dir,
// falling back to the working directory when that cannot be resolved.
func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "prefs.json"
	}
	return filepath.Join(dir, "quantadmin", "prefs.json")
}

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBool(key, trueValue string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), trueValue)
}

func envBoolDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "1") || strings.EqualFold(v, "yes")
}

func envStringSliceDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
