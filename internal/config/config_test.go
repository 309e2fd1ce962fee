package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ECAL_BASE_URL", "ECAL_RATE_LIMIT", "ECAL_CACHE_BACKEND", "SQLITE_PATH",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "CRON_PREFETCH", "CRON_DIGEST", "HTTPS_PROXY"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataSource.RateLimit != 1500*time.Millisecond {
		t.Errorf("expected default rate limit 1.5s, got %v", cfg.DataSource.RateLimit)
	}
	if cfg.Cache.Backend != BackendSQLite || cfg.Cache.SQLitePath != "data/ecal.db" {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Schedule.PrefetchDays != 7 {
		t.Errorf("expected 7 prefetch days, got %d", cfg.Schedule.PrefetchDays)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if err := cfg.ValidateServe(); err == nil {
		t.Error("expected serve validation to require telegram settings")
	}
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
data_source:
  base_url: https://example.test/
  rate_limit: 2s
  include_market_cap: true
cache:
  backend: memory
telegram:
  bot_token: file-token
  chat_id: "42"
schedule:
  prefetch_days: 14
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("ECAL_RATE_LIMIT", "250ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataSource.BaseURL != "https://example.test/" {
		t.Errorf("unexpected base url %q", cfg.DataSource.BaseURL)
	}
	if cfg.DataSource.RateLimit != 250*time.Millisecond {
		t.Errorf("expected env rate limit 250ms, got %v", cfg.DataSource.RateLimit)
	}
	if !cfg.DataSource.IncludeMarketCap {
		t.Error("expected include_market_cap from file")
	}
	if cfg.Cache.Backend != BackendMemory {
		t.Errorf("expected memory backend, got %q", cfg.Cache.Backend)
	}
	if cfg.Telegram.BotToken != "env-token" {
		t.Errorf("expected env token to win, got %q", cfg.Telegram.BotToken)
	}
	if cfg.Schedule.PrefetchDays != 14 {
		t.Errorf("expected 14 prefetch days, got %d", cfg.Schedule.PrefetchDays)
	}
	if err := cfg.ValidateServe(); err != nil {
		t.Errorf("expected valid serve config: %v", err)
	}
}

func TestLoad_InvalidInput(t *testing.T) {
	if _, err := Load(writeConfig(t, "data_source: [unclosed")); err == nil {
		t.Error("expected parse error")
	}

	t.Setenv("ECAL_RATE_LIMIT", "fast")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for bad ECAL_RATE_LIMIT")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"memory backend", func(c *Config) { c.Cache.Backend = BackendMemory }, false},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "redis" }, true},
		{"sqlite without path", func(c *Config) { c.Cache.SQLitePath = "" }, true},
		{"negative rate limit", func(c *Config) { c.DataSource.RateLimit = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
