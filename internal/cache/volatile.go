package cache

import (
	"time"

	"EarningsSentinel/internal/model"
)

var _ Cache = (*VolatileCache)(nil)

// VolatileCache keeps coverage and announcements in process memory.
// Its only failure mode is ErrInvalidArgument.
type VolatileCache struct {
	coverage *CoverageIndex
	records  *RecordStore
}

// NewVolatileCache returns an empty in-memory cache.
func NewVolatileCache() *VolatileCache {
	return &VolatileCache{
		coverage: NewCoverageIndex(),
		records:  NewRecordStore(),
	}
}

func (c *VolatileCache) MissingDates(dates []time.Time) ([]time.Time, error) {
	return c.coverage.Missing(dates), nil
}

func (c *VolatileCache) Merge(dates []time.Time, announcements []model.Announcement) error {
	if len(dates) == 0 {
		return nil
	}
	if err := validateMerge(dates, announcements); err != nil {
		return err
	}
	c.coverage.Add(dates...)
	for _, a := range announcements {
		c.records.Put(a)
	}
	return nil
}

func (c *VolatileCache) FetchRange(start, end time.Time) ([]model.Announcement, error) {
	from, to := rangeBounds(start, end)
	return c.records.Range(from, to), nil
}

func (c *VolatileCache) Close() error { return nil }
