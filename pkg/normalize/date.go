package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	timeOfDayRe  = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	daysAgoRe    = regexp.MustCompile(`(?i)(\d+)\s*(dni|dzień|days?)\s*temu|(\d+)\s*days?\s*ago`)
	weeksAgoRe   = regexp.MustCompile(`(?i)(\d+)\s*(tygodni\w*|tydzień|weeks?)\s*temu|(\d+)\s*weeks?\s*ago`)
	absoluteDate = regexp.MustCompile(`(\d{1,2})\s+(\p{L}+)\s+(\d{4})`)
)

// Polish month names in the genitive form listings use.
var polishMonths = map[string]time.Month{
	"stycznia":     time.January,
	"lutego":       time.February,
	"marca":        time.March,
	"kwietnia":     time.April,
	"maja":         time.May,
	"czerwca":      time.June,
	"lipca":        time.July,
	"sierpnia":     time.August,
	"września":     time.September,
	"wrzesnia":     time.September,
	"października": time.October,
	"pazdziernika": time.October,
	"listopada":    time.November,
	"grudnia":      time.December,
}

// Date converts a scraped date string to an absolute UTC instant. It
// recognizes, in priority order: Polish "today"/"yesterday" phrases with an
// optional HH:MM time of day, "N days/weeks ago" phrases, Polish
// month-name absolute dates ("02 października 2025"), then any generic
// date string. If nothing parses, the current time is returned.
func Date(s string) time.Time {
	return DateAt(s, time.Now())
}

// DateAt is Date with an injectable clock.
func DateAt(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.UTC()
	}
	lower := strings.ToLower(s)

	if strings.Contains(lower, "dzisiaj") || strings.Contains(lower, "dziś") || strings.Contains(lower, "dzis") || strings.Contains(lower, "today") {
		return withTimeOfDay(now, s).UTC()
	}
	if strings.Contains(lower, "wczoraj") || strings.Contains(lower, "yesterday") {
		return withTimeOfDay(now.AddDate(0, 0, -1), s).UTC()
	}

	if n, ok := relativeCount(daysAgoRe, lower); ok {
		return now.AddDate(0, 0, -n).UTC()
	}
	if n, ok := relativeCount(weeksAgoRe, lower); ok {
		return now.AddDate(0, 0, -7*n).UTC()
	}

	if m := absoluteDate.FindStringSubmatch(lower); m != nil {
		if month, ok := polishMonths[m[2]]; ok {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		}
	}

	if parsed, err := dateparse.ParseAny(s); err == nil {
		return parsed.UTC()
	}

	return now.UTC()
}

// withTimeOfDay applies an HH:MM from the raw string onto the given day,
// keeping the day's date.
func withTimeOfDay(day time.Time, raw string) time.Time {
	m := timeOfDayRe.FindStringSubmatch(raw)
	if m == nil {
		return day
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func relativeCount(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	for _, g := range m[1:] {
		if n, err := strconv.Atoi(g); err == nil {
			return n, true
		}
	}
	return 0, false
}

// FormatISO renders a time in the UTC-normalized ISO form used across
// persisted records.
func FormatISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
