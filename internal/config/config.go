package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Channel names accepted for NOTIFY_CHANNEL.
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

// State backend names accepted for STATE_BACKEND.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Defaults for the completion heuristic. A meeting counts as finished once
// its last update is at least QUIET_PERIOD_MINUTES old, and is only
// considered at all while the update is at most LOOKBACK_MINUTES old.
const (
	DefaultLookbackMinutes    = 30
	DefaultQuietPeriodMinutes = 5
)

type Config struct {
	EmailEnabled bool
	EmailTo      string
	EmailFrom    string
	AWSRegion    string

	NotifyChannel    string
	TelegramBotToken string
	TelegramChatID   int64

	CachePath    string
	StateBackend string
	StateFile    string
	StateDB      string

	LookbackMinutes    int
	QuietPeriodMinutes int
	Timezone           *time.Location

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads settings from the environment, optionally seeded from a .env
// file. An explicit envFile must exist; the implicit ./.env is best-effort.
// Real environment variables always win over .env values.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		// godotenv never overrides variables already set in the environment.
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	lookback, err := strconv.Atoi(getEnvWithDefault("LOOKBACK_MINUTES", strconv.Itoa(DefaultLookbackMinutes)))
	if err != nil {
		return nil, fmt.Errorf("invalid LOOKBACK_MINUTES: %w", err)
	}

	quiet, err := strconv.Atoi(getEnvWithDefault("QUIET_PERIOD_MINUTES", strconv.Itoa(DefaultQuietPeriodMinutes)))
	if err != nil {
		return nil, fmt.Errorf("invalid QUIET_PERIOD_MINUTES: %w", err)
	}

	loc := time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
		}
	}

	var chatID int64
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		chatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
	}

	cfg := &Config{
		EmailEnabled: strings.EqualFold(getEnvWithDefault("EMAIL_ENABLED", "false"), "true"),
		EmailTo:      os.Getenv("EMAIL_TO"),
		EmailFrom:    os.Getenv("EMAIL_FROM"),
		AWSRegion:    getEnvWithDefault("AWS_REGION", "us-east-1"),

		NotifyChannel:    strings.ToLower(getEnvWithDefault("NOTIFY_CHANNEL", ChannelEmail)),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   chatID,

		CachePath:    expandTilde(getEnvWithDefault("GRANOLA_CACHE_PATH", defaultCachePath())),
		StateBackend: strings.ToLower(getEnvWithDefault("STATE_BACKEND", BackendFile)),
		StateFile:    expandTilde(getEnvWithDefault("STATE_FILE", defaultStatePath(".granola_email_state.json"))),
		StateDB:      expandTilde(getEnvWithDefault("STATE_DB", defaultStatePath(".granola_email_state.db"))),

		LookbackMinutes:    lookback,
		QuietPeriodMinutes: quiet,
		Timezone:           loc,

		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),
		LogFile:   expandTilde(os.Getenv("LOG_FILE")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.LookbackMinutes <= 0 {
		return fmt.Errorf("LOOKBACK_MINUTES must be positive, got %d", c.LookbackMinutes)
	}
	if c.QuietPeriodMinutes < 0 {
		return fmt.Errorf("QUIET_PERIOD_MINUTES must not be negative, got %d", c.QuietPeriodMinutes)
	}
	if c.QuietPeriodMinutes > c.LookbackMinutes {
		return fmt.Errorf("QUIET_PERIOD_MINUTES (%d) exceeds LOOKBACK_MINUTES (%d): no meeting could ever match", c.QuietPeriodMinutes, c.LookbackMinutes)
	}
	if c.NotifyChannel != ChannelEmail && c.NotifyChannel != ChannelTelegram {
		return fmt.Errorf("invalid NOTIFY_CHANNEL: %s (must be %s or %s)", c.NotifyChannel, ChannelEmail, ChannelTelegram)
	}
	if c.StateBackend != BackendFile && c.StateBackend != BackendSQLite {
		return fmt.Errorf("invalid STATE_BACKEND: %s (must be %s or %s)", c.StateBackend, BackendFile, BackendSQLite)
	}
	return nil
}

// Lookback is the maximum age of a meeting's last update for the meeting to
// still be considered; anything older has aged out.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackMinutes) * time.Minute
}

// QuietPeriod is how long a meeting must stay untouched before it counts as
// finished.
func (c *Config) QuietPeriod() time.Duration {
	return time.Duration(c.QuietPeriodMinutes) * time.Minute
}

// StatePath returns the state location for the configured backend.
func (c *Config) StatePath() string {
	if c.StateBackend == BackendSQLite {
		return c.StateDB
	}
	return c.StateFile
}

func getEnvWithDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// defaultCachePath points at Granola's cache on macOS; on other systems the
// path must be set explicitly, so the default only has to be sensible there.
func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cache-v3.json"
	}
	return filepath.Join(home, "Library", "Application Support", "Granola", "cache-v3.json")
}

func defaultStatePath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, name)
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
