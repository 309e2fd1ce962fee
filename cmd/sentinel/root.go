package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"EarningsSentinel/internal/cache"
	"EarningsSentinel/internal/collector"
	"EarningsSentinel/internal/config"
)

const defaultConfigPath = "configs/config.yaml"

// mockSource selects the built-in sample calendar instead of the HTTP source.
const mockSource = "mock"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "sentinel",
		Short:         "Earnings calendar with a date-coverage cache",
		Long:          `Fetches earnings announcement calendars, caching every resolved date so repeat lookups never hit the upstream source again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", fmt.Sprintf("Config file (default: $CONFIG_PATH or %s)", defaultConfigPath))

	root.AddCommand(newGetCmd(opts))
	root.AddCommand(newMissingCmd(opts))
	root.AddCommand(newServeCmd(opts))
	return root
}

func (o *rootOptions) load() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = defaultConfigPath
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			path = v
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	if cfg.DataSource.BaseURL == mockSource {
		return collector.NewMockFetcher()
	}
	return collector.NewECNFetcher(collector.ECNOptions{
		BaseURL:          cfg.DataSource.BaseURL,
		MinInterval:      cfg.DataSource.RateLimit,
		Timeout:          cfg.DataSource.Timeout,
		MaxTries:         cfg.DataSource.MaxRetries,
		IncludeMarketCap: cfg.DataSource.IncludeMarketCap,
		Proxy:            cfg.Proxy,
	})
}

func newCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case config.BackendMemory:
		return cache.NewVolatileCache(), nil
	case config.BackendSQLite:
		c, err := cache.NewDurableCache(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func closeCache(c cache.Cache) {
	if err := c.Close(); err != nil {
		log.Printf("[WARN] close cache: %v", err)
	}
}
