package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every setting the loader reads so tests see defaults
// regardless of the surrounding environment. Variables must be truly unset,
// not empty: godotenv refuses to override anything present in the
// environment, even an empty value.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"EMAIL_ENABLED", "EMAIL_TO", "EMAIL_FROM", "AWS_REGION",
		"NOTIFY_CHANNEL", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"GRANOLA_CACHE_PATH", "STATE_BACKEND", "STATE_FILE", "STATE_DB",
		"LOOKBACK_MINUTES", "QUIET_PERIOD_MINUTES", "TIMEZONE",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	}
	for _, k := range keys {
		t.Setenv(k, "") // registers restoration of the original value
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.EmailEnabled {
		t.Error("EmailEnabled should default to false")
	}
	if cfg.AWSRegion != "us-east-1" {
		t.Errorf("AWSRegion = %q, want us-east-1", cfg.AWSRegion)
	}
	if cfg.NotifyChannel != ChannelEmail {
		t.Errorf("NotifyChannel = %q, want %q", cfg.NotifyChannel, ChannelEmail)
	}
	if cfg.StateBackend != BackendFile {
		t.Errorf("StateBackend = %q, want %q", cfg.StateBackend, BackendFile)
	}
	if cfg.LookbackMinutes != DefaultLookbackMinutes {
		t.Errorf("LookbackMinutes = %d, want %d", cfg.LookbackMinutes, DefaultLookbackMinutes)
	}
	if cfg.QuietPeriodMinutes != DefaultQuietPeriodMinutes {
		t.Errorf("QuietPeriodMinutes = %d, want %d", cfg.QuietPeriodMinutes, DefaultQuietPeriodMinutes)
	}
	if !strings.HasSuffix(cfg.StateFile, ".granola_email_state.json") {
		t.Errorf("StateFile = %q, want ~/.granola_email_state.json", cfg.StateFile)
	}
	if cfg.Timezone != time.Local {
		t.Errorf("Timezone = %v, want local", cfg.Timezone)
	}
	if cfg.Lookback() != 30*time.Minute {
		t.Errorf("Lookback() = %v, want 30m", cfg.Lookback())
	}
	if cfg.QuietPeriod() != 5*time.Minute {
		t.Errorf("QuietPeriod() = %v, want 5m", cfg.QuietPeriod())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMAIL_ENABLED", "TRUE")
	t.Setenv("EMAIL_TO", "notes@example.com")
	t.Setenv("EMAIL_FROM", "granola@example.com")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("LOOKBACK_MINUTES", "120")
	t.Setenv("QUIET_PERIOD_MINUTES", "10")
	t.Setenv("TIMEZONE", "America/Chicago")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200300")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.EmailEnabled {
		t.Error("EMAIL_ENABLED=TRUE should enable email")
	}
	if cfg.EmailTo != "notes@example.com" {
		t.Errorf("EmailTo = %q", cfg.EmailTo)
	}
	if cfg.LookbackMinutes != 120 || cfg.QuietPeriodMinutes != 10 {
		t.Errorf("window = %d/%d, want 120/10", cfg.LookbackMinutes, cfg.QuietPeriodMinutes)
	}
	if cfg.Timezone.String() != "America/Chicago" {
		t.Errorf("Timezone = %v, want America/Chicago", cfg.Timezone)
	}
	if cfg.TelegramChatID != -100200300 {
		t.Errorf("TelegramChatID = %d", cfg.TelegramChatID)
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), "granola.env")
	content := "EMAIL_ENABLED=true\nEMAIL_TO=file@example.com\nLOOKBACK_MINUTES=45\n"
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.EmailEnabled || cfg.EmailTo != "file@example.com" || cfg.LookbackMinutes != 45 {
		t.Errorf("env file values not applied: %+v", cfg)
	}
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMAIL_TO", "env@example.com")

	envFile := filepath.Join(t.TempDir(), "granola.env")
	if err := os.WriteFile(envFile, []byte("EMAIL_TO=file@example.com\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.EmailTo != "env@example.com" {
		t.Errorf("EmailTo = %q, environment should win over .env", cfg.EmailTo)
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for explicitly named missing env file")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric lookback", "LOOKBACK_MINUTES", "soon"},
		{"non-numeric quiet period", "QUIET_PERIOD_MINUTES", "5m"},
		{"zero lookback", "LOOKBACK_MINUTES", "0"},
		{"negative quiet period", "QUIET_PERIOD_MINUTES", "-1"},
		{"unknown timezone", "TIMEZONE", "Mars/Olympus"},
		{"unknown channel", "NOTIFY_CHANNEL", "carrier-pigeon"},
		{"unknown backend", "STATE_BACKEND", "postgres"},
		{"non-numeric chat id", "TELEGRAM_CHAT_ID", "alice"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(""); err == nil {
				t.Fatalf("Load accepted %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestQuietPeriodMustFitInsideLookback(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOOKBACK_MINUTES", "5")
	t.Setenv("QUIET_PERIOD_MINUTES", "30")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error when quiet period exceeds lookback")
	}
}

func TestStatePathFollowsBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATE_BACKEND", "sqlite")
	t.Setenv("STATE_DB", "/tmp/sent.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StatePath() != "/tmp/sent.db" {
		t.Errorf("StatePath() = %q, want /tmp/sent.db", cfg.StatePath())
	}
}
