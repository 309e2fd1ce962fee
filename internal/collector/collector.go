package collector

import (
	"context"
	"fmt"
	"log"
	"time"

	"EarningsSentinel/internal/cache"
	"EarningsSentinel/internal/model"
)

// Collector serves earnings calendars, fetching only the dates its cache has
// not resolved yet.
type Collector struct {
	Fetcher Fetcher
	Cache   cache.Cache // nil fetches every date on every call
}

// NewCollector creates a new Collector. Pass a nil cache to disable caching.
func NewCollector(fetcher Fetcher, c cache.Cache) *Collector {
	return &Collector{Fetcher: fetcher, Cache: c}
}

// Collect returns the announcements dated within [start, end], ordered by
// date. A zero end selects the single day start.
//
// Dates fetched before a failing fetch are still merged, so a retry only
// requests what is left.
func (c *Collector) Collect(ctx context.Context, start, end time.Time) ([]model.Announcement, error) {
	if end.IsZero() {
		end = start
	}
	days := model.DateRange(start, end)

	if c.Cache == nil {
		var out []model.Announcement
		for _, day := range days {
			anns, err := c.Fetcher.FetchDay(ctx, day)
			if err != nil {
				return nil, fmt.Errorf("fetch %s: %w", model.DateKey(day), err)
			}
			out = append(out, anns...)
		}
		return out, nil
	}

	missing, err := c.Cache.MissingDates(days)
	if err != nil {
		return nil, fmt.Errorf("check cache: %w", err)
	}

	if len(missing) > 0 {
		log.Printf("[INFO] fetching %d of %d dates from %s", len(missing), len(days), c.Fetcher.Name())
	}

	var (
		resolved []time.Time
		fetched  []model.Announcement
		fetchErr error
	)
	for _, day := range missing {
		anns, err := c.Fetcher.FetchDay(ctx, day)
		if err != nil {
			fetchErr = fmt.Errorf("fetch %s: %w", model.DateKey(day), err)
			break
		}
		resolved = append(resolved, day)
		fetched = append(fetched, anns...)
	}

	if err := c.Cache.Merge(resolved, fetched); err != nil {
		return nil, fmt.Errorf("merge into cache: %w", err)
	}
	if fetchErr != nil {
		if len(resolved) > 0 {
			log.Printf("[WARN] cached %d dates before fetch failure: %v", len(resolved), fetchErr)
		}
		return nil, fetchErr
	}

	anns, err := c.Cache.FetchRange(start, end)
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	return anns, nil
}

// Missing reports which dates in [start, end] have not been resolved yet.
// Without a cache every date is missing.
func (c *Collector) Missing(start, end time.Time) ([]time.Time, error) {
	days := model.DateRange(start, end)
	if c.Cache == nil {
		return days, nil
	}
	missing, err := c.Cache.MissingDates(days)
	if err != nil {
		return nil, fmt.Errorf("check cache: %w", err)
	}
	return missing, nil
}
