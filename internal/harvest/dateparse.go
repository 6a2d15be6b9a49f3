package harvest

import (
	"strings"
	"time"
)

// Accepted posted-date layouts. The detail page renders "Month Day, Year";
// stripping whitespace during scraping can collapse it to "MonthDay,Year".
var postedLayouts = []string{
	"January 2, 2006",
	"January2,2006",
}

// NormalizePostedText cleans a scraped posted-time string: non-breaking
// spaces, the "Posted" prefix, and a trailing period.
func NormalizePostedText(raw string) string {
	s := strings.ReplaceAll(raw, " ", " ")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Posted")
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	return strings.TrimSpace(s)
}

// ParsePostedDate parses a normalized posted-time string against the accepted
// layouts; the first matching layout wins. It never guesses: a string
// matching no layout yields ok == false.
func ParsePostedDate(s string) (time.Time, bool) {
	for _, layout := range postedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
