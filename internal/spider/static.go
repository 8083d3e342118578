package spider

import (
	"context"
	"fmt"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/logger"
)

// Static crawls server-rendered list pages and fetches each linked article.
type Static struct {
	fetcher   Fetcher
	extractor ContentExtractor
	opts      Options
	log       logger.Logger
}

// NewStatic creates a static HTML spider.
func NewStatic(f Fetcher, ext ContentExtractor, opts Options, log logger.Logger) *Static {
	return &Static{fetcher: f, extractor: ext, opts: opts.withDefaults(), log: log}
}

// Crawl fetches the list page, then each article page in turn. An article whose
// page cannot be fetched is skipped.
func (s *Static) Crawl(ctx context.Context, src domain.SourceDescriptor) ([]domain.Article, error) {
	log := logger.FromContext(ctx, s.log).With(logger.String("source", src.Name), logger.String("kind", string(src.Kind)))

	listURL := src.ListTarget()
	page, err := s.fetcher.Fetch(ctx, listURL, src.Encoding)
	if err != nil {
		return nil, fmt.Errorf("fetch list page %s: %w", listURL, err)
	}

	items := ParseList(page.Text, src, s.opts.maxItems(src))
	log.Debug("Parsed list page", logger.String("url", listURL), logger.Int("items", len(items)))

	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		if ctx.Err() != nil {
			log.Warn("Crawl interrupted", logger.Error(ctx.Err()))
			break
		}

		article, ok := s.crawlArticle(ctx, src, item, log)
		if ok {
			articles = append(articles, article)
		}
	}

	return articles, nil
}

func (s *Static) crawlArticle(
	ctx context.Context,
	src domain.SourceDescriptor,
	item ListItem,
	log logger.Logger,
) (domain.Article, bool) {
	page, err := s.fetcher.Fetch(ctx, item.URL, src.Encoding)
	if err != nil {
		log.Debug("Skipping unavailable article", logger.String("url", item.URL), logger.Error(err))
		return domain.Article{}, false
	}

	res := s.extractor.Extract([]byte(page.Text), item.URL)

	a := newArticle(src, s.opts.Now())
	a.URL = item.URL
	a.Title = item.Title
	if a.Title == "" {
		a.Title = res.Title
	}
	a.Content = res.Content
	a.Summary = res.Summary
	a.PublishTime = res.PublishTime
	if a.PublishTime == nil && item.Date != "" {
		a.PublishTime = s.extractor.ParseTime(item.Date)
	}

	return a, a.Valid()
}
