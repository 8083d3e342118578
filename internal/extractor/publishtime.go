package extractor

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var timeSelectors = []string{
	".publish-time",
	".publish-time span",
	".article-time",
	".post-time",
	".time",
	".date",
	`[class*="time"]`,
	`[class*="date"]`,
}

var timePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}\s*\d{2}:\d{2}:\d{2}`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}\s*\d{2}:\d{2}`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`\d{4}/\d{2}/\d{2}`),
	regexp.MustCompile(`\d{2}月\d{2}日\s*\d{2}:\d{2}`),
	regexp.MustCompile(`\d{2}月\d{2}日`),
}

// offsetLayouts carry their own zone.
var offsetLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

// naiveLayouts are interpreted in the extractor's location.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
}

// yearlessLayouts take the current year.
var yearlessLayouts = []string{
	"01月02日 15:04",
	"01月02日",
}

// dateTimeGap matches a date and a clock time separated by optional whitespace.
var dateTimeGap = regexp.MustCompile(`^(\d{4}[-/]\d{2}[-/]\d{2}|\d{2}月\d{2}日)\s*(\d{2}:\d{2}(?::\d{2})?)$`)

func (e *Extractor) extractPublishTime(doc *goquery.Document) *time.Time {
	if v, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content"); ok && v != "" {
		return e.ParseTime(v)
	}
	if v, ok := doc.Find(`meta[name="pubdate"]`).First().Attr("content"); ok && v != "" {
		return e.ParseTime(v)
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok && v != "" {
		return e.ParseTime(v)
	}

	for _, sel := range timeSelectors {
		var found *time.Time
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = e.matchTime(strings.TrimSpace(s.Text()))
			return found == nil
		})
		if found != nil {
			return found
		}
	}

	return nil
}

// matchTime scans text with the date patterns and parses the first hit that parses.
func (e *Extractor) matchTime(text string) *time.Time {
	if text == "" {
		return nil
	}
	for _, re := range timePatterns {
		m := re.FindString(text)
		if m == "" {
			continue
		}
		if t := e.ParseTime(m); t != nil {
			return t
		}
	}
	return nil
}

// ParseTime parses s against the known layouts in order. It returns nil when
// nothing matches.
func (e *Extractor) ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}

	normalized := dateTimeGap.ReplaceAllString(s, "$1 $2")

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, normalized, e.loc); err == nil {
			return &t
		}
	}

	year := e.now().In(e.loc).Year()
	for _, layout := range yearlessLayouts {
		if t, err := time.ParseInLocation(layout, normalized, e.loc); err == nil {
			t = time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, e.loc)
			return &t
		}
	}

	return nil
}
