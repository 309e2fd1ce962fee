package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		BaseURL          string        `yaml:"base_url"`
		RateLimit        time.Duration `yaml:"rate_limit"`
		Timeout          time.Duration `yaml:"timeout"`
		MaxRetries       uint          `yaml:"max_retries"`
		IncludeMarketCap bool          `yaml:"include_market_cap"`
	} `yaml:"data_source"`
	Cache struct {
		Backend    string `yaml:"backend"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"cache"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		PrefetchCron string `yaml:"prefetch_cron"`
		DigestCron   string `yaml:"digest_cron"`
		PrefetchDays int    `yaml:"prefetch_days"`
	} `yaml:"schedule"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("ECAL_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("ECAL_RATE_LIMIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse ECAL_RATE_LIMIT: %w", err)
		}
		cfg.DataSource.RateLimit = d
	}
	if v := os.Getenv("ECAL_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Cache.SQLitePath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("CRON_PREFETCH"); v != "" {
		cfg.Schedule.PrefetchCron = v
	}
	if v := os.Getenv("CRON_DIGEST"); v != "" {
		cfg.Schedule.DigestCron = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.DataSource.RateLimit == 0 {
		cfg.DataSource.RateLimit = 1500 * time.Millisecond
	}
	if cfg.DataSource.Timeout == 0 {
		cfg.DataSource.Timeout = 30 * time.Second
	}
	if cfg.DataSource.MaxRetries == 0 {
		cfg.DataSource.MaxRetries = 3
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = BackendSQLite
	}
	if cfg.Cache.SQLitePath == "" {
		cfg.Cache.SQLitePath = "data/ecal.db"
	}
	if cfg.Schedule.PrefetchCron == "" {
		cfg.Schedule.PrefetchCron = "0 0 6 * * *"
	}
	if cfg.Schedule.DigestCron == "" {
		cfg.Schedule.DigestCron = "0 0 7 * * 1-5"
	}
	if cfg.Schedule.PrefetchDays == 0 {
		cfg.Schedule.PrefetchDays = 7
	}

	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Cache.SQLitePath == "" {
			return fmt.Errorf("cache.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", BackendMemory, BackendSQLite, c.Cache.Backend)
	}
	if c.DataSource.RateLimit < 0 {
		return fmt.Errorf("data_source.rate_limit must not be negative")
	}
	if c.Schedule.PrefetchDays < 0 {
		return fmt.Errorf("schedule.prefetch_days must not be negative")
	}
	return nil
}

// ValidateServe additionally checks the settings the long-running service needs.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	return nil
}
