package cache

import (
	"slices"
	"testing"

	"EarningsSentinel/internal/model"
)

func TestCoverageIndex_AddIsIdempotent(t *testing.T) {
	idx := NewCoverageIndex()
	idx.Add(dates("2018-01-01", "2018-01-02")...)
	idx.Add(dates("2018-01-02")...)

	got := keysOf(idx.Missing(dates("2018-01-01", "2018-01-02", "2018-01-03")))
	if !slices.Equal(got, []string{"2018-01-03"}) {
		t.Errorf("expected only 2018-01-03 missing, got %v", got)
	}
}

func TestRecordStore_RangeAcrossSparseDays(t *testing.T) {
	s := NewRecordStore()
	s.Put(model.NewAnnouncement(d("2018-01-09"), "B", model.AfterClose))
	s.Put(model.NewAnnouncement(d("2018-01-02"), "Z", model.BeforeOpen))
	s.Put(model.NewAnnouncement(d("2018-01-02"), "A", model.BeforeOpen))
	s.Put(model.NewAnnouncement(d("2018-01-05"), "M", model.Unspecified))
	s.Put(model.NewAnnouncement(d("2018-01-05"), "M", model.AfterClose))

	tests := []struct {
		from, to string
		want     []string
	}{
		{"2018-01-01", "2018-01-31", []string{"A", "Z", "M", "B"}},
		{"2018-01-03", "2018-01-08", []string{"M"}},
		{"2018-01-05", "2018-01-05", []string{"M"}},
		{"2018-01-06", "2018-01-08", nil},
		{"2018-01-09", "2018-01-01", nil},
	}
	for _, tt := range tests {
		got := s.Range(tt.from, tt.to)
		if len(got) != len(tt.want) {
			t.Errorf("[%s, %s]: expected %d records, got %d", tt.from, tt.to, len(tt.want), len(got))
			continue
		}
		for i, a := range got {
			if a.Ticker != tt.want[i] {
				t.Errorf("[%s, %s] record %d: expected %s, got %s", tt.from, tt.to, i, tt.want[i], a.Ticker)
			}
		}
	}

	if got := s.Range("2018-01-05", "2018-01-05"); got[0].When != model.AfterClose {
		t.Errorf("expected replaced session amc, got %s", got[0].When)
	}
}
