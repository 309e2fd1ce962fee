// Package cache remembers which calendar dates have been resolved against the
// earnings source and which announcements were found for them.
//
// A date is "covered" once it has been merged, whether or not any
// announcement exists for it. The absence of announcements for a date is only
// meaningful when the date is covered; otherwise the date has simply not been
// fetched yet. Callers therefore ask MissingDates before fetching, Merge what
// they fetched, then serve the range with FetchRange.
//
// Implementations are not safe for concurrent use. Wrap a Cache with
// Synchronized when several goroutines share it.
package cache

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"EarningsSentinel/internal/model"
)

var (
	// ErrInvalidArgument reports a caller contract violation, e.g. announcements
	// dated outside the merged date list.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStorageUnavailable reports that the backing store could not be opened
	// or its schema created.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStorageWriteFailed reports a merge that was rolled back.
	ErrStorageWriteFailed = errors.New("storage write failed")
	// ErrStorageReadFailed reports a query that could not be answered.
	ErrStorageReadFailed = errors.New("storage read failed")
)

// Cache is the date-coverage cache contract shared by all backends.
type Cache interface {
	// MissingDates returns the dates not yet covered, in input order.
	// Repeated dates are reported once, at their first position.
	MissingDates(dates []time.Time) ([]time.Time, error)

	// Merge marks every date as covered and stores the announcements,
	// replacing any stored announcement with the same date and ticker.
	// An empty date list is a no-op. Announcements dated outside dates are
	// rejected with ErrInvalidArgument and nothing is stored.
	Merge(dates []time.Time, announcements []model.Announcement) error

	// FetchRange returns stored announcements dated within [start, end],
	// ordered by date then ticker. A zero end selects the single day start.
	FetchRange(start, end time.Time) ([]model.Announcement, error)

	Close() error
}

// rangeBounds resolves the inclusive key bounds of a FetchRange call.
func rangeBounds(start, end time.Time) (string, string) {
	if end.IsZero() {
		end = start
	}
	return model.DateKey(start), model.DateKey(end)
}

// validateMerge checks that every announcement belongs to a merged date and
// carries a ticker.
func validateMerge(dates []time.Time, announcements []model.Announcement) error {
	merged := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			return fmt.Errorf("%w: zero date in merge list", ErrInvalidArgument)
		}
		merged[model.DateKey(d)] = struct{}{}
	}
	for _, a := range announcements {
		if strings.TrimSpace(a.Ticker) == "" {
			return fmt.Errorf("%w: announcement on %s has no ticker", ErrInvalidArgument, model.DateKey(a.Date))
		}
		if _, ok := merged[model.DateKey(a.Date)]; !ok {
			return fmt.Errorf("%w: announcement %s is outside the merged dates", ErrInvalidArgument, a.Key())
		}
	}
	return nil
}
