// Package common provides shared wiring for command implementations.
package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"

	"github.com/jonesrussell/fincrawl/internal/config"
	"github.com/jonesrussell/fincrawl/internal/dedup"
	"github.com/jonesrussell/fincrawl/internal/extractor"
	"github.com/jonesrussell/fincrawl/internal/fetcher"
	"github.com/jonesrussell/fincrawl/internal/logger"
	"github.com/jonesrussell/fincrawl/internal/metrics"
	"github.com/jonesrussell/fincrawl/internal/orchestrator"
	"github.com/jonesrussell/fincrawl/internal/scheduler"
	"github.com/jonesrussell/fincrawl/internal/sink"
	"github.com/jonesrussell/fincrawl/internal/sources"
	"github.com/jonesrussell/fincrawl/internal/spider"
	"github.com/jonesrussell/fincrawl/internal/store"
)

// CommandDeps holds the dependencies every command needs.
type CommandDeps struct {
	Logger logger.Logger
	Config *config.Config
}

// Validate ensures all required dependencies are present.
func (d CommandDeps) Validate() error {
	if d.Logger == nil {
		return ErrLoggerRequired
	}
	if d.Config == nil {
		return ErrConfigRequired
	}
	return nil
}

// NewCommandDeps loads the configuration from viper and builds the logger.
func NewCommandDeps() (CommandDeps, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return CommandDeps{}, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("create logger: %w", err)
	}

	deps := CommandDeps{Logger: log, Config: cfg}
	if err = deps.Validate(); err != nil {
		return CommandDeps{}, fmt.Errorf("validate deps: %w", err)
	}
	return deps, nil
}

// App is the fully wired crawl stack.
type App struct {
	Deps         CommandDeps
	Sources      *sources.Provider
	Transport    *fetcher.Transport
	Extractor    *extractor.Extractor
	Factory      *spider.Factory
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *scheduler.Scheduler
	Notifiers    []sink.Notifier
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics

	closers []func() error
}

// NewApp wires the crawl stack from deps. Optional sinks that fail to
// connect are logged and skipped; the store is required.
func NewApp(ctx context.Context, deps CommandDeps) (*App, error) {
	cfg := deps.Config
	log := deps.Logger
	app := &App{Deps: deps}

	provider, err := sources.NewProvider(cfg.Sources.File)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	app.Sources = provider

	st, err := OpenStore(ctx, deps)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, st.Close)
	app.Store = st

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.New(app.Registry)

	app.Transport = fetcher.New(cfg.Crawler.Config, log.With(logger.String("component", "fetcher")))
	app.Extractor = extractor.New(
		extractor.WithLocation(cfg.Location()),
		extractor.WithReadabilityFallback(cfg.Crawler.ReadabilityFallback),
	)

	var launcher spider.Launcher
	if cfg.Browser.Enabled {
		launcher = spider.RodLauncher{Bin: cfg.Browser.Bin}
	}
	app.Factory = spider.NewFactory(
		app.Transport,
		app.Extractor,
		launcher,
		spider.Options{MaxItems: cfg.Crawler.MaxItemsPerSource},
		log.With(logger.String("component", "spider")),
		spider.WithDefaultHeadless(cfg.Browser.Headless),
	)

	app.Orchestrator = orchestrator.New(
		provider,
		app.Factory,
		dedup.New(),
		st,
		orchestrator.WithLogger(log.With(logger.String("component", "orchestrator"))),
		orchestrator.WithMetrics(app.Metrics),
		orchestrator.WithLookbackDays(cfg.Crawler.LookbackDays),
	)

	app.Notifiers = app.buildNotifiers(ctx)

	app.Scheduler = scheduler.New(
		app.Orchestrator,
		st,
		scheduler.WithLogger(log.With(logger.String("component", "scheduler"))),
		scheduler.WithMetrics(app.Metrics),
		scheduler.WithNotifiers(app.Notifiers...),
		scheduler.WithLocation(cfg.Location()),
	)

	return app, nil
}

func (a *App) buildNotifiers(ctx context.Context) []sink.Notifier {
	cfg := a.Deps.Config
	log := a.Deps.Logger
	notifiers := []sink.Notifier{sink.NewLogNotifier(log.With(logger.String("component", "sink")))}

	if cfg.Elasticsearch.Enabled {
		client, err := sink.NewElasticsearchClient(ctx, sink.ElasticsearchConfig{
			Addresses: cfg.Elasticsearch.Addresses,
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
		})
		if err != nil {
			log.Warn("Elasticsearch unavailable, indexing disabled", logger.Error(err))
		} else {
			indexer := sink.NewElasticsearchIndexer(client, cfg.Elasticsearch.Index, log)
			if err = indexer.EnsureIndex(ctx); err != nil {
				log.Warn("Failed to ensure Elasticsearch index", logger.Error(err))
			}
			notifiers = append(notifiers, indexer)
		}
	}

	if cfg.Redis.Enabled {
		client, err := sink.NewRedisClient(ctx, sink.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis unavailable, publishing disabled", logger.Error(err))
		} else {
			a.closers = append(a.closers, client.Close)
			notifiers = append(notifiers, sink.NewRedisPublisher(client, cfg.Redis.Channel, log))
		}
	}

	return notifiers
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.Deps.Logger.Sync()
	return errors.Join(errs...)
}
