package collector

import (
	"context"
	"sync"
	"time"

	"EarningsSentinel/internal/model"
)

// MockFetcher serves a fixed calendar for development and testing.
type MockFetcher struct {
	Calendar map[string][]model.Announcement // keyed by YYYY-MM-DD
	Err      error                           // returned for dates in FailOn, or for every date if FailOn is empty
	FailOn   map[string]bool

	mu    sync.Mutex
	calls []string
}

// NewMockFetcher returns a fetcher seeded with the sample calendar.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{Calendar: SampleCalendar()}
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDay(ctx context.Context, day time.Time) ([]model.Announcement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := model.DateKey(day)

	m.mu.Lock()
	m.calls = append(m.calls, key)
	m.mu.Unlock()

	if m.Err != nil && (len(m.FailOn) == 0 || m.FailOn[key]) {
		return nil, m.Err
	}
	anns := m.Calendar[key]
	out := make([]model.Announcement, len(anns))
	copy(out, anns)
	return out, nil
}

// Calls returns the dates requested so far, in order.
func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// SampleCalendar returns announcements for the first week of January 2018.
func SampleCalendar() map[string][]model.Announcement {
	jan4 := model.MustDate("2018-01-04")
	jan5 := model.MustDate("2018-01-05")
	return map[string][]model.Announcement{
		"2018-01-04": {
			model.NewAnnouncement(jan4, "CMC", model.BeforeOpen),
			model.NewAnnouncement(jan4, "LNDC", model.AfterClose),
			model.NewAnnouncement(jan4, "NEOG", model.BeforeOpen),
			model.NewAnnouncement(jan4, "RAD", model.AfterClose),
			model.NewAnnouncement(jan4, "RECN", model.AfterClose),
			model.NewAnnouncement(jan4, "UNF", model.BeforeOpen),
		},
		"2018-01-05": {
			model.NewAnnouncement(jan5, "AEHR", model.AfterClose),
			model.NewAnnouncement(jan5, "ANGO", model.BeforeOpen),
			model.NewAnnouncement(jan5, "FC", model.AfterClose),
			model.NewAnnouncement(jan5, "LW", model.BeforeOpen),
			model.NewAnnouncement(jan5, "PKE", model.BeforeOpen),
			model.NewAnnouncement(jan5, "PSMT", model.AfterClose),
			model.NewAnnouncement(jan5, "RPM", model.BeforeOpen),
			model.NewAnnouncement(jan5, "SONC", model.AfterClose),
			model.NewAnnouncement(jan5, "WBA", model.BeforeOpen),
		},
	}
}
