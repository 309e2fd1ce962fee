package cache

import (
	"sync"
	"time"

	"EarningsSentinel/internal/model"
)

type synchronized struct {
	mu    sync.Mutex
	inner Cache
}

// Synchronized serializes every call on c behind one mutex so the cache can
// be shared between goroutines.
func Synchronized(c Cache) Cache {
	if s, ok := c.(*synchronized); ok {
		return s
	}
	return &synchronized{inner: c}
}

func (s *synchronized) MissingDates(dates []time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.MissingDates(dates)
}

func (s *synchronized) Merge(dates []time.Time, announcements []model.Announcement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Merge(dates, announcements)
}

func (s *synchronized) FetchRange(start, end time.Time) ([]model.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.FetchRange(start, end)
}

func (s *synchronized) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}
