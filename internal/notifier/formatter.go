package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"EarningsSentinel/internal/model"
)

// maxPerDay caps the tickers listed under one date so a busy reporting day
// stays within Telegram's message size limit.
const maxPerDay = 60

// FormatDigest formats the announcements for a single day.
func FormatDigest(day time.Time, anns []model.Announcement) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>Earnings today</b> | %s\n\n", day.Format("Mon 2006-01-02")))
	if len(anns) == 0 {
		b.WriteString("No announcements scheduled.")
		return b.String()
	}
	writeDay(&b, anns)
	return b.String()
}

// FormatCalendar formats the announcements in [start, end], grouped by date.
// Dates without announcements are listed so the reader can tell them apart
// from dates that were never fetched.
func FormatCalendar(start, end time.Time, anns []model.Announcement) string {
	var b strings.Builder
	days := model.DateRange(start, end)
	if len(days) == 1 {
		b.WriteString(fmt.Sprintf("📅 <b>Earnings calendar</b> | %s\n", days[0].Format("Mon 2006-01-02")))
	} else {
		b.WriteString(fmt.Sprintf("📅 <b>Earnings calendar</b> | %s → %s\n", model.DateKey(start), model.DateKey(end)))
	}

	byDay := make(map[string][]model.Announcement)
	for _, a := range anns {
		k := model.DateKey(a.Date)
		byDay[k] = append(byDay[k], a)
	}

	for _, day := range days {
		b.WriteString(fmt.Sprintf("\n<b>%s</b>\n", day.Format("Mon 01-02")))
		dayAnns := byDay[model.DateKey(day)]
		if len(dayAnns) == 0 {
			b.WriteString("  (none)\n")
			continue
		}
		writeDay(&b, dayAnns)
	}
	b.WriteString(fmt.Sprintf("\nTotal: %d", len(anns)))
	return b.String()
}

// writeDay lists one day's announcements under before-open, after-close and
// unspecified headings.
func writeDay(b *strings.Builder, anns []model.Announcement) {
	groups := []model.When{model.BeforeOpen, model.AfterClose, model.Unspecified}
	buckets := make(map[model.When][]model.Announcement, len(groups))
	for _, a := range anns {
		w := model.ParseWhen(string(a.When))
		buckets[w] = append(buckets[w], a)
	}

	for _, w := range groups {
		list := buckets[w]
		if len(list) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s %s (%d): ", whenIcon(w), w.Label(), len(list)))
		shown := list
		if len(shown) > maxPerDay {
			shown = shown[:maxPerDay]
		}
		parts := make([]string, 0, len(shown))
		for _, a := range shown {
			parts = append(parts, formatTicker(a))
		}
		b.WriteString(strings.Join(parts, ", "))
		if extra := len(list) - len(shown); extra > 0 {
			b.WriteString(fmt.Sprintf(" … +%d more", extra))
		}
		b.WriteString("\n")
	}
}

func formatTicker(a model.Announcement) string {
	s := "<code>" + html.EscapeString(a.Ticker) + "</code>"
	if a.MarketCapMM.Valid {
		s += fmt.Sprintf(" ($%sM)", a.MarketCapMM.Decimal.StringFixed(0))
	}
	return s
}

func whenIcon(w model.When) string {
	switch w {
	case model.BeforeOpen:
		return "🌅"
	case model.AfterClose:
		return "🌙"
	default:
		return "❔"
	}
}

// FormatError formats a failed lookup for the chat.
func FormatError(what string, err error) string {
	return fmt.Sprintf("❌ %s failed: %s", what, html.EscapeString(err.Error()))
}

// FormatHelp lists the supported chat commands.
func FormatHelp() string {
	return "Available commands:\n" +
		"• /today\n" +
		"• /tomorrow\n" +
		"• /week\n" +
		"• /date YYYY-MM-DD"
}
