package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"EarningsSentinel/internal/cache"
	"EarningsSentinel/internal/collector"
	"EarningsSentinel/internal/model"
	"EarningsSentinel/internal/notifier"
	"EarningsSentinel/internal/scheduler"
)

// parseRange reads START and an optional END argument.
func parseRange(args []string) (start, end time.Time, err error) {
	start, err = model.ParseDate(args[0])
	if err != nil {
		return
	}
	end = start
	if len(args) > 1 {
		if end, err = model.ParseDate(args[1]); err != nil {
			return
		}
	}
	return
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON  bool
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "get START [END]",
		Short: "Print the earnings calendar for a date or inclusive date range",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(args)
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}

			var c cache.Cache
			if !noCache {
				if c, err = newCache(cfg); err != nil {
					return err
				}
				defer closeCache(c)
			}

			col := collector.NewCollector(newFetcher(cfg), c)
			anns, err := col.Collect(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), anns)
			}
			writeTable(cmd.OutOrStdout(), anns)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Fetch every date from the source, bypassing the cache")
	return cmd
}

func newMissingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "missing START [END]",
		Short: "List the dates in a range that the cache has not resolved yet",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(args)
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}
			c, err := newCache(cfg)
			if err != nil {
				return err
			}
			defer closeCache(c)

			missing, err := collector.NewCollector(newFetcher(cfg), c).Missing(start, end)
			if err != nil {
				return err
			}
			for _, d := range missing {
				fmt.Fprintln(cmd.OutOrStdout(), model.DateKey(d))
			}
			return nil
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the prefetch and digest schedule and answer Telegram commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Println("[INFO] EarningsSentinel starting...")
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}

			fetcher := newFetcher(cfg)
			log.Printf("[INFO] data source: %s", fetcher.Name())

			c, err := newCache(cfg)
			if err != nil {
				return err
			}
			defer closeCache(c)

			tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

			// Context for graceful shutdown
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sched := scheduler.NewScheduler(ctx, collector.NewCollector(fetcher, c), tn, cfg.Schedule.PrefetchDays)
			if err := sched.RegisterAll(cfg.Schedule.PrefetchCron, cfg.Schedule.DigestCron); err != nil {
				return fmt.Errorf("register cron tasks: %w", err)
			}
			sched.Start()
			defer sched.Stop()

			go tn.StartPolling(ctx, sched.HandleCommand)
			log.Println("[INFO] Telegram polling started")

			if os.Getenv("RUN_ON_START") == "true" {
				log.Println("[INFO] RUN_ON_START enabled, executing prefetch now")
				// sched.Stop waits for this before the cache is closed.
				go sched.RunPrefetchNow()
			}

			log.Println("[INFO] EarningsSentinel is running. Press Ctrl+C to stop.")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-sigCh:
				log.Println("[INFO] shutdown signal received, stopping...")
			case <-ctx.Done():
			}
			cancel()
			log.Println("[INFO] EarningsSentinel stopped")
			return nil
		},
	}
}

func writeJSON(w io.Writer, anns []model.Announcement) error {
	if anns == nil {
		anns = []model.Announcement{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(anns); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func writeTable(w io.Writer, anns []model.Announcement) {
	for _, a := range anns {
		capMM := "-"
		if a.MarketCapMM.Valid {
			capMM = "$" + a.MarketCapMM.Decimal.StringFixed(0) + "M"
		}
		fmt.Fprintf(w, "%s  %-8s %-12s %s\n", model.DateKey(a.Date), a.Ticker, a.When.Label(), capMM)
	}
	fmt.Fprintf(w, "%d announcements\n", len(anns))
}
