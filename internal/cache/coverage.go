package cache

import (
	"time"

	"EarningsSentinel/internal/model"
)

// CoverageIndex is the set of dates the cache holds authoritative answers for.
type CoverageIndex struct {
	dates map[string]struct{}
}

// NewCoverageIndex returns an empty index.
func NewCoverageIndex() *CoverageIndex {
	return &CoverageIndex{dates: make(map[string]struct{})}
}

// Add marks dates as covered. Re-adding a covered date is a no-op.
func (c *CoverageIndex) Add(dates ...time.Time) {
	for _, d := range dates {
		c.dates[model.DateKey(d)] = struct{}{}
	}
}

// Missing returns the uncovered subsequence of dates, first occurrence only.
func (c *CoverageIndex) Missing(dates []time.Time) []time.Time {
	var missing []time.Time
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		key := model.DateKey(d)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := c.dates[key]; !ok {
			missing = append(missing, d)
		}
	}
	return missing
}
