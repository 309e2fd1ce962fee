package collector

import (
	"context"
	"time"

	"EarningsSentinel/internal/model"
)

// Fetcher retrieves the earnings announcements published for one date.
// Implementations own their rate limiting.
type Fetcher interface {
	FetchDay(ctx context.Context, day time.Time) ([]model.Announcement, error)
	Name() string
}
