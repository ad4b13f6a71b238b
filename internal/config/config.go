package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Default notification window, hours of the day
const (
	DefaultNotificationStartHour = 4
	DefaultNotificationEndHour   = 18
)

// Config holds the application configuration
type Config struct {
	// Database
	DBType      string // "sqlite" or "postgres"
	DBPath      string // SQLite file
	DatabaseURL string // Postgres DSN

	// Telegram
	TelegramToken  string
	TelegramChatID int64 // owner chat, the only one served

	// Analysis service
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	TargetLanguage string
	NativeLanguage string

	LogMode string

	// Reminders
	SchedulerEnabled      bool
	NotificationStartHour int
	NotificationEndHour   int
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	// A missing .env is normal in production
	_ = godotenv.Load()

	cfg := &Config{
		DBType:                strings.ToLower(getEnv("DB_TYPE", "sqlite")),
		DBPath:                getEnv("DB_PATH", filepath.Join("data", "leitner.db")),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		TelegramToken:         os.Getenv("TELEGRAM_BOT_TOKEN"),
		OpenAIKey:             os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:         os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		TargetLanguage:        getEnv("TARGET_LANGUAGE", "Swedish"),
		NativeLanguage:        getEnv("NATIVE_LANGUAGE", "English"),
		LogMode:               getEnv("LOG_MODE", "dev"),
		SchedulerEnabled:      os.Getenv("ENABLE_SCHEDULER") != "false",
		NotificationStartHour: DefaultNotificationStartHour,
		NotificationEndHour:   DefaultNotificationEndHour,
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		cfg.TelegramChatID = id
	}

	var err error
	if cfg.NotificationStartHour, err = hourEnv("NOTIFICATION_START_HOUR", DefaultNotificationStartHour); err != nil {
		return nil, err
	}
	if cfg.NotificationEndHour, err = hourEnv("NOTIFICATION_END_HOUR", DefaultNotificationEndHour); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	switch c.DBType {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH must be set for sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.DBType)
	}
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	if c.NotificationStartHour > c.NotificationEndHour {
		return fmt.Errorf("notification window %d-%d is empty", c.NotificationStartHour, c.NotificationEndHour)
	}
	return nil
}

// AnalysisEnabled reports whether an analysis service key is configured
func (c *Config) AnalysisEnabled() bool {
	return c.OpenAIKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func hourEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	h, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%s must be an hour between 0 and 23, got %q", key, v)
	}
	return h, nil
}
