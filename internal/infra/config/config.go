package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	// DatabaseURL selects the backend: when set, the remote Postgres store is
	// used; when empty, the app falls back to the local key-value store at
	// LocalDBPath.
	DatabaseURL string
	LocalDBPath string

	// Telegram reminders are optional; with no token the reminder scheduler
	// simply does not start.
	TelegramToken     string
	ReminderChatID    int64
	CronSpecReminders string

	// Empresa restricts reminder digests and stats to one catalog partition.
	// Empty means all cycles.
	Empresa string

	LogLevel    string
	Environment string
}

// UseRemoteBackend reports whether the remote structured store is configured.
func (c *AppConfig) UseRemoteBackend() bool {
	return c.DatabaseURL != ""
}

// RemindersEnabled reports whether the reminder digest can be wired up.
func (c *AppConfig) RemindersEnabled() bool {
	return c.TelegramToken != "" && c.ReminderChatID != 0
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.LocalDBPath = os.Getenv("LOCAL_DB_PATH")
	if cfg.LocalDBPath == "" {
		cfg.LocalDBPath = "ledger.db"
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")

	chatIDStr := os.Getenv("REMINDER_CHAT_ID")
	if chatIDStr != "" {
		var err error
		cfg.ReminderChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid REMINDER_CHAT_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.ReminderChatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is set but REMINDER_CHAT_ID is not")
	}

	cfg.CronSpecReminders = os.Getenv("CRON_SPEC_REMINDERS")
	if cfg.CronSpecReminders == "" {
		cfg.CronSpecReminders = "0 10 * * *" // Default: 10:00 AM daily
	}

	cfg.Empresa = strings.ToLower(os.Getenv("EMPRESA"))

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	return cfg, nil
}
