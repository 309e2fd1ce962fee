package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// When indicates the session an earnings announcement is tied to.
type When string

const (
	BeforeOpen  When = "bmo"
	AfterClose  When = "amc"
	Unspecified When = "--"
)

// ParseWhen maps an upstream session marker to a When. Unknown markers are
// treated as unspecified.
func ParseWhen(s string) When {
	switch When(s) {
	case BeforeOpen, AfterClose:
		return When(s)
	default:
		return Unspecified
	}
}

// Label returns a human-readable session name.
func (w When) Label() string {
	switch w {
	case BeforeOpen:
		return "before open"
	case AfterClose:
		return "after close"
	default:
		return "unspecified"
	}
}

// Announcement is a single earnings announcement on a calendar date.
// Values are never mutated once built; a newer announcement for the same
// (date, ticker) replaces the old one wholesale.
type Announcement struct {
	Date        time.Time           `json:"date"`
	Ticker      string              `json:"ticker"`
	When        When                `json:"when"`
	MarketCapMM decimal.NullDecimal `json:"market_cap_mm"`
}

// NewAnnouncement builds an announcement without a market cap.
func NewAnnouncement(date time.Time, ticker string, when When) Announcement {
	return Announcement{Date: DateOf(date), Ticker: ticker, When: when}
}

// WithMarketCap returns a copy carrying the given market cap in millions.
func (a Announcement) WithMarketCap(capMM decimal.Decimal) Announcement {
	a.MarketCapMM = decimal.NewNullDecimal(capMM)
	return a
}

// Key returns the (date, ticker) identity of the announcement.
func (a Announcement) Key() string {
	return DateKey(a.Date) + "/" + a.Ticker
}

// Equal reports whether two announcements carry the same values.
func (a Announcement) Equal(b Announcement) bool {
	if DateKey(a.Date) != DateKey(b.Date) || a.Ticker != b.Ticker || a.When != b.When {
		return false
	}
	if a.MarketCapMM.Valid != b.MarketCapMM.Valid {
		return false
	}
	return !a.MarketCapMM.Valid || a.MarketCapMM.Decimal.Equal(b.MarketCapMM.Decimal)
}
