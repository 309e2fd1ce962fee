package cache

import (
	"sort"

	"EarningsSentinel/internal/model"
)

// RecordStore holds announcements by date, keeping dates sorted for range scans.
type RecordStore struct {
	days map[string]map[string]model.Announcement // date -> ticker -> announcement
	keys []string                                 // sorted date keys present in days
}

// NewRecordStore returns an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{days: make(map[string]map[string]model.Announcement)}
}

// Put inserts a, replacing any announcement with the same date and ticker.
func (s *RecordStore) Put(a model.Announcement) {
	a.Date = model.DateOf(a.Date)
	a.When = model.ParseWhen(string(a.When))
	key := model.DateKey(a.Date)
	day, ok := s.days[key]
	if !ok {
		day = make(map[string]model.Announcement)
		s.days[key] = day
		i := sort.SearchStrings(s.keys, key)
		s.keys = append(s.keys, "")
		copy(s.keys[i+1:], s.keys[i:])
		s.keys[i] = key
	}
	day[a.Ticker] = a
}

// Range returns announcements with date keys in [from, to], ordered by date
// then ticker.
func (s *RecordStore) Range(from, to string) []model.Announcement {
	var out []model.Announcement
	if from > to {
		return out
	}
	for i := sort.SearchStrings(s.keys, from); i < len(s.keys) && s.keys[i] <= to; i++ {
		day := s.days[s.keys[i]]
		tickers := make([]string, 0, len(day))
		for t := range day {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
		for _, t := range tickers {
			out = append(out, day[t])
		}
	}
	return out
}
