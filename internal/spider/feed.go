package spider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/extractor"
	"github.com/jonesrussell/fincrawl/internal/fetcher"
	"github.com/jonesrussell/fincrawl/internal/logger"
)

// feedSummaryLength caps entry summaries.
const feedSummaryLength = 500

// FeedProbePaths are tried against the base URL, in order, when a source has no feed URL.
var FeedProbePaths = []string{
	"/rss",
	"/feed",
	"/feed.xml",
	"/rss.xml",
	"/atom.xml",
	"/rss/feed.xml",
}

// xmlEncodingDecl matches the encoding attribute of an XML declaration.
var xmlEncodingDecl = regexp.MustCompile(`^(\s*<\?xml[^>]*?\bencoding\s*=\s*["'])[^"']*(["'])`)

// ErrNoFeed is returned when no feed URL is configured and probing finds none.
var ErrNoFeed = errors.New("no feed found")

// Feed crawls RSS and Atom feeds.
type Feed struct {
	fetcher   Fetcher
	extractor ContentExtractor
	opts      Options
	log       logger.Logger
}

// NewFeed creates a feed spider.
func NewFeed(f Fetcher, ext ContentExtractor, opts Options, log logger.Logger) *Feed {
	return &Feed{fetcher: f, extractor: ext, opts: opts.withDefaults(), log: log}
}

// Crawl resolves the feed URL, fetches and parses it.
func (s *Feed) Crawl(ctx context.Context, src domain.SourceDescriptor) ([]domain.Article, error) {
	log := logger.FromContext(ctx, s.log).With(logger.String("source", src.Name), logger.String("kind", string(src.Kind)))

	feedURL := src.FeedURL
	if feedURL == "" {
		feedURL = s.Discover(ctx, src.BaseURL)
		if feedURL == "" {
			return nil, fmt.Errorf("%w at %s", ErrNoFeed, src.BaseURL)
		}
		log.Info("Discovered feed", logger.String("feed_url", feedURL))
	}

	page, err := s.fetcher.Fetch(ctx, feedURL, src.Encoding)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}

	parsed, err := gofeed.NewParser().Parse(feedReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	limit := s.opts.maxItems(src)
	entries := parsed.Items
	if len(entries) > limit {
		entries = entries[:limit]
	}

	articles := make([]domain.Article, 0, len(entries))
	for _, entry := range entries {
		a := s.toArticle(src, entry)
		if a.Valid() {
			articles = append(articles, a)
		}
	}

	log.Debug("Parsed feed", logger.String("feed_url", feedURL), logger.Int("articles", len(articles)))
	return articles, nil
}

// Discover probes the conventional feed paths under baseURL and returns the
// first one answering with an XML content type.
// Probe paths are absolute, so they resolve against the host root even when
// baseURL has a path of its own.
func (s *Feed) Discover(ctx context.Context, baseURL string) string {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Host == "" {
		s.log.Debug("Invalid base URL for feed discovery", logger.String("url", baseURL))
		return ""
	}
	for _, path := range FeedProbePaths {
		candidate := base.ResolveReference(&url.URL{Path: path}).String()
		page, probeErr := s.fetcher.Probe(ctx, candidate)
		if probeErr != nil {
			s.log.Debug("Feed probe failed", logger.String("url", candidate), logger.Error(probeErr))
			continue
		}
		if page.StatusCode/100 == 2 && strings.Contains(strings.ToLower(page.ContentType), "xml") {
			return candidate
		}
	}
	return ""
}

// feedReader returns the feed document for gofeed. Untranscoded bodies go in
// raw so the parser can honour the XML declaration. Transcoded text gets its
// declaration rewritten to utf-8 so it is not decoded a second time.
func feedReader(page *fetcher.Page) io.Reader {
	if page.Encoding == "" || strings.EqualFold(page.Encoding, "utf-8") {
		return bytes.NewReader(page.Body)
	}
	return strings.NewReader(xmlEncodingDecl.ReplaceAllString(page.Text, "${1}utf-8${2}"))
}

func (s *Feed) toArticle(src domain.SourceDescriptor, entry *gofeed.Item) domain.Article {
	a := newArticle(src, s.opts.Now())
	a.Title = strings.TrimSpace(entry.Title)
	a.URL = strings.TrimSpace(entry.Link)

	switch {
	case entry.PublishedParsed != nil:
		t := *entry.PublishedParsed
		a.PublishTime = &t
	case entry.UpdatedParsed != nil:
		t := *entry.UpdatedParsed
		a.PublishTime = &t
	case entry.Published != "":
		a.PublishTime = s.extractor.ParseTime(entry.Published)
	}

	summary := entry.Description
	if summary == "" {
		summary = entry.Content
	}
	a.Summary = extractor.Truncate(stripHTML(summary), feedSummaryLength)

	return a
}

// stripHTML returns the text of an HTML fragment with whitespace collapsed.
func stripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
