// Package orchestrator runs one crawl batch over every configured source.
// Sources are crawled one at a time; a failing source is recorded and the
// batch moves on.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/fincrawl/internal/dedup"
	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/logger"
	"github.com/jonesrussell/fincrawl/internal/metrics"
	"github.com/jonesrussell/fincrawl/internal/sources"
	"github.com/jonesrussell/fincrawl/internal/spider"
)

// DefaultLookbackDays bounds the history used to seed deduplication.
const DefaultLookbackDays = 30

// errNoArticles marks a source that ran cleanly but produced nothing.
var errNoArticles = errors.New("no articles produced")

// SourceProvider lists the sources to crawl.
type SourceProvider interface {
	AllSources(ctx context.Context) ([]domain.SourceDescriptor, error)
}

// SpiderFactory picks the spider for a source kind.
type SpiderFactory interface {
	For(kind domain.SourceKind) (spider.Spider, error)
}

// History returns recently stored articles.
type History interface {
	Recent(ctx context.Context, days int) ([]domain.Article, error)
}

// Batch is the result of one run.
type Batch struct {
	RunID      uuid.UUID             `json:"run_id"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Articles   []domain.Article      `json:"articles"`
	Outcomes   []domain.CrawlOutcome `json:"outcomes"`
}

// Duration is how long the run took.
func (b *Batch) Duration() time.Duration {
	return b.FinishedAt.Sub(b.StartedAt)
}

// Succeeded counts sources that produced at least one article.
func (b *Batch) Succeeded() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Failed counts sources that produced nothing.
func (b *Batch) Failed() int {
	return len(b.Outcomes) - b.Succeeded()
}

// ByCategory counts the batch's articles per category.
func (b *Batch) ByCategory() map[string]int {
	counts := make(map[string]int)
	for _, a := range b.Articles {
		counts[a.Category]++
	}
	return counts
}

// Orchestrator drives spiders over the source list.
type Orchestrator struct {
	provider SourceProvider
	factory  SpiderFactory
	dedup    *dedup.Deduplicator
	history  History
	log      logger.Logger
	metrics  *metrics.Metrics
	lookback int
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithMetrics records per-source results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLookbackDays sets the history window used to seed deduplication.
func WithLookbackDays(days int) Option {
	return func(o *Orchestrator) {
		if days > 0 {
			o.lookback = days
		}
	}
}

// WithClock overrides the clock used for run and outcome timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator. history may be nil, in which case no seeding
// happens.
func New(
	provider SourceProvider,
	factory SpiderFactory,
	d *dedup.Deduplicator,
	history History,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		factory:  factory,
		dedup:    d,
		history:  history,
		log:      logger.NewNop(),
		lookback: DefaultLookbackDays,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.dedup == nil {
		o.dedup = dedup.New()
	}
	return o
}

// Run crawls every enabled source and returns the deduplicated batch. Source
// failures become failed outcomes; only a provider failure returns an error.
func (o *Orchestrator) Run(ctx context.Context) (*Batch, error) {
	batch := &Batch{
		RunID:     uuid.New(),
		StartedAt: o.now(),
		Articles:  []domain.Article{},
		Outcomes:  []domain.CrawlOutcome{},
	}
	runID := logger.String("run_id", batch.RunID.String())
	log := o.log.With(runID)
	ctx = logger.ContextWithFields(ctx, runID)

	o.seed(ctx, log)

	list, err := o.provider.AllSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	log.Info("Starting crawl run", logger.Int("sources", len(list)))

	for _, src := range list {
		if !src.Enabled {
			log.Debug("Skipping disabled source", logger.String("source", src.Name))
			continue
		}

		produced, crawlErr := o.crawl(ctx, src)
		fresh := o.dedup.Deduplicate(produced)
		batch.Articles = append(batch.Articles, fresh...)

		outcome := o.outcome(src, len(produced), crawlErr)
		batch.Outcomes = append(batch.Outcomes, outcome)
		o.metrics.SourceCrawled(src.Name, len(produced), len(fresh), outcome.Success)

		if crawlErr != nil {
			log.Error("Source crawl failed",
				logger.String("source", src.Name),
				logger.String("kind", string(src.Kind)),
				logger.Error(crawlErr),
			)
			continue
		}
		log.Info("Source crawled",
			logger.String("source", src.Name),
			logger.Int("produced", len(produced)),
			logger.Int("new", len(fresh)),
		)
	}

	batch.FinishedAt = o.now()
	log.Info("Crawl run finished",
		logger.Int("articles", len(batch.Articles)),
		logger.Int("succeeded", batch.Succeeded()),
		logger.Int("failed", batch.Failed()),
		logger.Duration("duration", batch.Duration()),
	)

	return batch, nil
}

// CrawlSource crawls the named source, enabled or not, without touching the
// deduplication index.
func (o *Orchestrator) CrawlSource(ctx context.Context, name string) ([]domain.Article, domain.CrawlOutcome, error) {
	list, err := o.provider.AllSources(ctx)
	if err != nil {
		return nil, domain.CrawlOutcome{}, fmt.Errorf("load sources: %w", err)
	}

	for _, src := range list {
		if src.Name != name {
			continue
		}
		produced, crawlErr := o.crawl(ctx, src)
		return produced, o.outcome(src, len(produced), crawlErr), nil
	}

	return nil, domain.CrawlOutcome{}, fmt.Errorf("%w: %q", sources.ErrNotFound, name)
}

// Reset clears the deduplication index.
func (o *Orchestrator) Reset() {
	o.dedup.Clear()
}

// DedupStats reports the deduplication index sizes.
func (o *Orchestrator) DedupStats() dedup.Stats {
	return o.dedup.Stats()
}

func (o *Orchestrator) seed(ctx context.Context, log logger.Logger) {
	if o.history == nil {
		return
	}

	recent, err := o.history.Recent(ctx, o.lookback)
	if err != nil {
		log.Warn("Failed to load history for deduplication", logger.Error(err))
		return
	}

	urls := make([]string, 0, len(recent))
	for _, a := range recent {
		urls = append(urls, a.URL)
	}
	o.dedup.LoadFromDatabase(urls)
	log.Debug("Seeded deduplication from history",
		logger.Int("urls", len(urls)),
		logger.Int("lookback_days", o.lookback),
	)
}

// crawl runs one spider inside a recover boundary.
func (o *Orchestrator) crawl(ctx context.Context, src domain.SourceDescriptor) (articles []domain.Article, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("Spider panicked",
				logger.String("source", src.Name),
				logger.Any("panic", r),
			)
			articles, err = nil, fmt.Errorf("spider panic: %v", r)
		}
	}()

	s, err := o.factory.For(src.Kind)
	if err != nil {
		return nil, err
	}
	return s.Crawl(ctx, src)
}

func (o *Orchestrator) outcome(src domain.SourceDescriptor, produced int, err error) domain.CrawlOutcome {
	outcome := domain.CrawlOutcome{
		Source:       src.Name,
		Category:     src.Category,
		Kind:         src.Kind,
		Success:      produced > 0,
		ArticleCount: produced,
		CrawlTime:    o.now(),
	}
	switch {
	case err != nil:
		outcome.Error = err.Error()
	case produced == 0:
		outcome.Error = errNoArticles.Error()
	}
	return outcome
}
