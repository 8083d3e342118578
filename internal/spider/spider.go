// Package spider implements the crawl strategies for each source kind:
// static HTML pages, RSS/Atom feeds, and pages rendered by a headless browser.
package spider

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/extractor"
	"github.com/jonesrussell/fincrawl/internal/fetcher"
	"github.com/jonesrussell/fincrawl/internal/logger"
)

// defaultMaxItems caps list items per source when the source sets no limit.
const defaultMaxItems = 50

// Spider turns one source into candidate articles. Failures on individual
// items are logged and skipped; an error means the source produced nothing.
type Spider interface {
	Crawl(ctx context.Context, src domain.SourceDescriptor) ([]domain.Article, error)
}

// Fetcher is the HTTP transport used by the static and feed spiders.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, encodingOverride string) (*fetcher.Page, error)
	Probe(ctx context.Context, rawURL string) (*fetcher.Page, error)
}

// ContentExtractor turns article HTML into fields.
type ContentExtractor interface {
	Extract(html []byte, pageURL string) extractor.Result
	ParseTime(s string) *time.Time
}

// Options are crawl-wide settings shared by every spider.
type Options struct {
	// MaxItems applies when a source sets no max_items.
	MaxItems int
	// Now stamps CrawlTime. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxItems <= 0 {
		o.MaxItems = defaultMaxItems
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) maxItems(src domain.SourceDescriptor) int {
	if src.MaxItems > 0 {
		return src.MaxItems
	}
	return o.MaxItems
}

// Factory selects the spider for a source kind.
type Factory struct {
	spiders map[domain.SourceKind]Spider
}

// NewFactory builds the three spiders around shared dependencies. browser may
// be nil, in which case browser-driven sources fail with ErrNoBrowser.
func NewFactory(
	f Fetcher,
	ext ContentExtractor,
	browser Launcher,
	opts Options,
	log logger.Logger,
	bopts ...BrowserOption,
) *Factory {
	return &Factory{spiders: map[domain.SourceKind]Spider{
		domain.KindStatic:  NewStatic(f, ext, opts, log),
		domain.KindFeed:    NewFeed(f, ext, opts, log),
		domain.KindBrowser: NewBrowser(browser, ext, opts, log, bopts...),
	}}
}

// NewFactoryFrom registers spiders directly; tests use it to inject fakes.
func NewFactoryFrom(spiders map[domain.SourceKind]Spider) *Factory {
	return &Factory{spiders: spiders}
}

// For returns the spider handling kind.
func (f *Factory) For(kind domain.SourceKind) (Spider, error) {
	s, ok := f.spiders[kind]
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}
	return s, nil
}

func newArticle(src domain.SourceDescriptor, now time.Time) domain.Article {
	return domain.Article{
		Source:     src.Name,
		Category:   src.Category,
		SourceKind: src.Kind,
		CrawlTime:  now,
	}
}
