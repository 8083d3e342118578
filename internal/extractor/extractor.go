// Package extractor turns raw article HTML into a title, body text, summary and
// publish time using ordered selector cascades. It never fails: fields that
// cannot be found come back empty.
package extractor

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Result holds the fields extracted from one page.
type Result struct {
	Title       string
	Content     string
	Summary     string
	PublishTime *time.Time
}

// Extractor extracts article fields from HTML.
type Extractor struct {
	loc         *time.Location
	now         func() time.Time
	readability bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLocation sets the zone used for timestamps that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(e *Extractor) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock overrides the clock used to fill in the year of month/day dates.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithReadabilityFallback enables go-readability when the selector cascade finds no body.
func WithReadabilityFallback(enabled bool) Option {
	return func(e *Extractor) { e.readability = enabled }
}

// New creates an Extractor. Naive timestamps default to Asia/Shanghai.
func New(opts ...Option) *Extractor {
	e := &Extractor{loc: defaultLocation(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// Extract parses html fetched from pageURL.
func (e *Extractor) Extract(html []byte, pageURL string) Result {
	if len(bytes.TrimSpace(html)) == 0 {
		return Result{}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Result{}
	}

	res := Result{
		Title:       extractTitle(doc),
		PublishTime: e.extractPublishTime(doc),
	}

	res.Content = extractContent(doc)
	if res.Content == "" && e.readability {
		res.Content = readabilityText(html, pageURL)
	}
	if res.Content != "" {
		res.Summary = Summarize(res.Content)
	}

	return res
}

// readabilityText runs go-readability over the original markup.
func readabilityText(html []byte, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(html), parsed)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}
