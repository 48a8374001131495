package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g. BUCKETLIST_DATABASE_URL.
const Prefix = "BUCKETLIST"

// Config keeps runtime settings for the store and its front ends.
type Config struct {
	DatabaseURL   string        `envconfig:"DATABASE_URL" default:"bucket_list.db"`
	TelegramToken string        `envconfig:"TELEGRAM_TOKEN"`
	AllowedUserID int64         `envconfig:"ALLOWED_USER_ID"`
	PollInterval  time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	TimeZone      string        `envconfig:"TIMEZONE" default:"Local"`
	MetricsAddr   string        `envconfig:"METRICS_ADDR"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`

	location *time.Location
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return cfg, fmt.Errorf("process env: %w", err)
	}

	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "bucket_list.db"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	loc, err := time.LoadLocation(strings.TrimSpace(cfg.TimeZone))
	if err != nil {
		return cfg, fmt.Errorf("load timezone %q: %w", cfg.TimeZone, err)
	}
	cfg.location = loc

	return cfg, nil
}

// Location is the zone used to collapse completion times into calendar days.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// RequireTelegram checks the settings needed by the bot front end.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("%s_TELEGRAM_TOKEN is required", Prefix)
	}
	return nil
}
