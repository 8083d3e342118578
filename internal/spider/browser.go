package spider

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/extractor"
	"github.com/jonesrussell/fincrawl/internal/logger"
)

// Browser timings.
const (
	navigationTimeout  = 30 * time.Second
	listSelectorWait   = 10 * time.Second
	detailSettleTime   = 2 * time.Second
	defaultBrowserWait = 2 * time.Second
	maxWaitJitter      = 2 * time.Second
	browserSummaryLen  = 200
)

// Browser context fingerprint.
const (
	ViewportWidth  = 1920
	ViewportHeight = 1080
	BrowserLocale  = "zh-CN"
	BrowserZone    = "Asia/Shanghai"
)

// UserAgents is the pool a browser session picks its user agent from.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

var browserContentSelectors = []string{
	"article",
	".article-content",
	".post-content",
	".content",
	"#content",
	".article-body",
	".article-main",
	".news-content",
	".text-content",
}

// ErrNoBrowser is returned when a browser-driven source is crawled without a launcher.
var ErrNoBrowser = errors.New("browser launcher not configured")

// LaunchOptions describe the browser context for one source.
type LaunchOptions struct {
	Headless  bool
	Stealth   bool
	Proxy     string
	UserAgent string
	Locale    string
	Timezone  string
	Width     int
	Height    int
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
}

// Session is a single browser tab. Calls are blocking and strictly sequential.
type Session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitSelector(ctx context.Context, selector string, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
	BodyText(ctx context.Context) (string, error)
	Close() error
}

// Browser crawls pages that need JavaScript rendering.
type Browser struct {
	launcher  Launcher
	extractor ContentExtractor
	opts      Options
	log       logger.Logger

	defaultHeadless bool
	sleep           func(ctx context.Context, d time.Duration) error
	jitter          func() time.Duration
	pickUA          func() string
}

// BrowserOption customizes the browser spider.
type BrowserOption func(*Browser)

// WithSleeper replaces the wait used between navigation steps.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) BrowserOption {
	return func(b *Browser) { b.sleep = sleep }
}

// WithDefaultHeadless sets the headless mode for sources that do not choose one.
func WithDefaultHeadless(headless bool) BrowserOption {
	return func(b *Browser) { b.defaultHeadless = headless }
}

// NewBrowser creates a browser-driven spider. launcher may be nil.
func NewBrowser(l Launcher, ext ContentExtractor, opts Options, log logger.Logger, bopts ...BrowserOption) *Browser {
	b := &Browser{
		launcher:        l,
		extractor:       ext,
		opts:            opts.withDefaults(),
		log:             log,
		defaultHeadless: true,
		sleep:           sleepContext,
		jitter:          func() time.Duration { return rand.N(maxWaitJitter) },
		pickUA:          func() string { return UserAgents[rand.IntN(len(UserAgents))] },
	}
	for _, opt := range bopts {
		opt(b)
	}
	return b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Crawl renders the list page, then visits each article one at a time in the same tab.
func (b *Browser) Crawl(ctx context.Context, src domain.SourceDescriptor) ([]domain.Article, error) {
	if b.launcher == nil {
		return nil, ErrNoBrowser
	}
	log := logger.FromContext(ctx, b.log).With(logger.String("source", src.Name), logger.String("kind", string(src.Kind)))

	session, err := b.launcher.Launch(ctx, b.launchOptions(src))
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Warn("Failed to close browser", logger.Error(closeErr))
		}
	}()

	items, err := b.loadList(ctx, session, src, log)
	if err != nil {
		return nil, err
	}

	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		if ctx.Err() != nil {
			log.Warn("Crawl interrupted", logger.Error(ctx.Err()))
			break
		}
		a, ok := b.crawlArticle(ctx, session, src, item, log)
		if ok {
			articles = append(articles, a)
		}
	}

	return articles, nil
}

func (b *Browser) launchOptions(src domain.SourceDescriptor) LaunchOptions {
	headless := b.defaultHeadless
	if src.Browser.Headless != nil {
		headless = *src.Browser.Headless
	}
	return LaunchOptions{
		Headless:  headless,
		Stealth:   src.Browser.Stealth,
		Proxy:     src.Browser.Proxy,
		UserAgent: b.pickUA(),
		Locale:    BrowserLocale,
		Timezone:  BrowserZone,
		Width:     ViewportWidth,
		Height:    ViewportHeight,
	}
}

func (b *Browser) loadList(
	ctx context.Context,
	session Session,
	src domain.SourceDescriptor,
	log logger.Logger,
) ([]ListItem, error) {
	listURL := src.ListTarget()
	if err := session.Navigate(ctx, listURL, navigationTimeout); err != nil {
		return nil, fmt.Errorf("navigate to list page %s: %w", listURL, err)
	}

	wait := src.Browser.WaitTime
	if wait <= 0 {
		wait = defaultBrowserWait
	}
	if err := b.sleep(ctx, wait+b.jitter()); err != nil {
		return nil, err
	}

	listSel := src.Selectors.List
	if listSel == "" {
		listSel = defaultListSelector
	}
	if err := session.WaitSelector(ctx, listSel, listSelectorWait); err != nil {
		log.Warn("List selector did not appear", logger.String("selector", listSel), logger.Error(err))
	}

	html, err := session.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read list page: %w", err)
	}

	items := ParseList(html, src, b.opts.maxItems(src))
	log.Debug("Parsed rendered list page", logger.String("url", listURL), logger.Int("items", len(items)))
	return items, nil
}

func (b *Browser) crawlArticle(
	ctx context.Context,
	session Session,
	src domain.SourceDescriptor,
	item ListItem,
	log logger.Logger,
) (domain.Article, bool) {
	if err := session.Navigate(ctx, item.URL, navigationTimeout); err != nil {
		log.Debug("Skipping article, navigation failed", logger.String("url", item.URL), logger.Error(err))
		return domain.Article{}, false
	}
	if err := b.sleep(ctx, detailSettleTime); err != nil {
		return domain.Article{}, false
	}

	a := newArticle(src, b.opts.Now())
	a.URL = item.URL
	a.Title = item.Title

	html, err := session.HTML(ctx)
	if err != nil {
		log.Debug("Failed to read article page", logger.String("url", item.URL), logger.Error(err))
	}
	a.Summary, a.Content = renderedContent(html)

	if a.Content == "" {
		if text, textErr := session.BodyText(ctx); textErr == nil {
			a.Content = strings.Join(splitLines(text), "\n")
			a.Summary = extractor.Truncate(a.Content, browserSummaryLen)
		}
	}

	if b.extractor != nil {
		if html != "" {
			a.PublishTime = b.extractor.Extract([]byte(html), item.URL).PublishTime
		}
		if a.PublishTime == nil && item.Date != "" {
			a.PublishTime = b.extractor.ParseTime(item.Date)
		}
	}

	return a, a.Valid()
}

// renderedContent returns the paragraphs of the first content container that has any.
func renderedContent(html string) (summary, content string) {
	if html == "" {
		return "", ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}

	for _, sel := range browserContentSelectors {
		elem := doc.Find(sel).First()
		if elem.Length() == 0 {
			continue
		}
		var parts []string
		elem.Find("p").Each(func(_ int, p *goquery.Selection) {
			if text := strings.TrimSpace(p.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return extractor.Truncate(parts[0], browserSummaryLen), strings.Join(parts, "\n\n")
		}
	}
	return "", ""
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
