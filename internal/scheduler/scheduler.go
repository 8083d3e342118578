// Package scheduler triggers a crawl run once a day and on demand, then
// persists and distributes the results.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/logger"
	"github.com/jonesrussell/fincrawl/internal/metrics"
	"github.com/jonesrussell/fincrawl/internal/orchestrator"
	"github.com/jonesrussell/fincrawl/internal/sink"
)

// JobName names the daily cron entry.
const JobName = "daily_crawl"

var (
	// ErrStopped is returned once Stop has been called.
	ErrStopped = errors.New("scheduler stopped")
	// ErrInvalidTime is returned for an hour outside 0-23 or a minute outside 0-59.
	ErrInvalidTime = errors.New("invalid schedule time")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Runner produces a crawl batch.
type Runner interface {
	Run(ctx context.Context) (*orchestrator.Batch, error)
}

// Store persists a run's results.
type Store interface {
	Save(ctx context.Context, articles []domain.Article) (int, error)
	RecordCrawlOutcome(ctx context.Context, outcome domain.CrawlOutcome) error
	Statistics(ctx context.Context) (domain.Statistics, error)
}

// RunSummary describes the most recent run.
type RunSummary struct {
	RunID      string    `json:"run_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Articles   int       `json:"articles"`
	Saved      int       `json:"saved"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running        bool               `json:"running"`
	Stopped        bool               `json:"stopped"`
	ScheduledJobs  int                `json:"scheduled_jobs"`
	NotifiersCount int                `json:"notifiers_count"`
	NextRun        *time.Time         `json:"next_run,omitempty"`
	LastRun        *RunSummary        `json:"last_run,omitempty"`
	Database       *domain.Statistics `json:"database,omitempty"`
	DatabaseError  string             `json:"database_error,omitempty"`
}

// Scheduler owns the cron trigger and the post-run pipeline.
type Scheduler struct {
	runner    Runner
	store     Store
	notifiers []sink.Notifier
	log       logger.Logger
	metrics   *metrics.Metrics
	loc       *time.Location
	now       func() time.Time

	cron     *cron.Cron
	runMu    sync.Mutex
	running  atomic.Bool
	inFlight sync.WaitGroup

	mu      sync.Mutex
	entry   cron.EntryID
	started bool
	stopped bool
	lastRun *RunSummary
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithNotifiers appends notifiers called after each run.
func WithNotifiers(n ...sink.Notifier) Option {
	return func(s *Scheduler) { s.notifiers = append(s.notifiers, n...) }
}

// WithLocation sets the zone of the daily trigger. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the clock used for run summaries.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler.
func New(runner Runner, store Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner: runner,
		store:  store,
		log:    logger.NewNop(),
		loc:    time.Local,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

// Start registers the daily trigger at hour:minute, starts it, and performs
// one run before returning. The eager run's error is logged, not returned.
func (s *Scheduler) Start(ctx context.Context, hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, hour, minute)
	}

	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return ErrStopped
	case s.started:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}

	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	id, err := s.cron.AddFunc(spec, s.scheduledRun)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("register %s: %w", JobName, err)
	}
	s.entry = id
	s.started = true
	s.cron.Start()
	s.mu.Unlock()

	s.log.Info("Scheduler started",
		logger.String("job", JobName),
		logger.String("schedule", spec),
		logger.String("timezone", s.loc.String()),
	)

	if _, runErr := s.RunOnce(context.WithoutCancel(ctx)); runErr != nil {
		s.log.Error("Initial crawl run failed", logger.Error(runErr))
	}
	return nil
}

func (s *Scheduler) scheduledRun() {
	s.log.Info("Scheduled crawl triggered", logger.String("job", JobName))
	if _, err := s.RunOnce(context.Background()); err != nil {
		s.log.Error("Scheduled crawl run failed", logger.String("job", JobName), logger.Error(err))
	}
}

// RunOnce performs one run and the post-run pipeline: save, notify, record
// outcomes. Concurrent calls run one after another.
func (s *Scheduler) RunOnce(ctx context.Context) (*orchestrator.Batch, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrStopped
	}
	s.inFlight.Add(1)
	s.mu.Unlock()
	defer s.inFlight.Done()

	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)
	s.metrics.RunStarted()

	started := s.now()
	summary := &RunSummary{StartedAt: started}
	defer func() {
		summary.FinishedAt = s.now()
		s.metrics.RunFinished(summary.FinishedAt.Sub(started), summary.FinishedAt)
		s.mu.Lock()
		s.lastRun = summary
		s.mu.Unlock()
	}()

	batch, err := s.runner.Run(ctx)
	if err != nil {
		summary.Error = err.Error()
		return nil, fmt.Errorf("crawl run: %w", err)
	}
	summary.RunID = batch.RunID.String()
	summary.Articles = len(batch.Articles)
	summary.Succeeded = batch.Succeeded()
	summary.Failed = batch.Failed()

	saved, saveErr := s.store.Save(ctx, batch.Articles)
	if saveErr != nil {
		s.log.Error("Failed to save articles", logger.Error(saveErr), logger.Int("articles", len(batch.Articles)))
		summary.Error = saveErr.Error()
	} else {
		summary.Saved = saved
		s.metrics.Saved(saved)
		s.notify(ctx, batch.Articles)
	}

	s.recordOutcomes(ctx, batch.Outcomes)
	s.logRunStats(batch, saved)

	if saveErr != nil {
		return batch, fmt.Errorf("save articles: %w", saveErr)
	}
	return batch, nil
}

func (s *Scheduler) notify(ctx context.Context, articles []domain.Article) {
	if len(articles) == 0 {
		return
	}
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, articles); err != nil {
			s.log.Warn("Notifier failed",
				logger.String("notifier", n.Name()),
				logger.Error(err),
			)
		}
	}
}

func (s *Scheduler) recordOutcomes(ctx context.Context, outcomes []domain.CrawlOutcome) {
	for _, o := range outcomes {
		if err := s.store.RecordCrawlOutcome(ctx, o); err != nil {
			s.log.Warn("Failed to record crawl outcome",
				logger.String("source", o.Source),
				logger.Error(err),
			)
		}
	}
}

func (s *Scheduler) logRunStats(batch *orchestrator.Batch, saved int) {
	byCategory := batch.ByCategory()
	for _, category := range slices.Sorted(maps.Keys(byCategory)) {
		s.log.Info("New articles by category",
			logger.String("category", category),
			logger.Int("count", byCategory[category]),
		)
	}

	var failed []string
	for _, o := range batch.Outcomes {
		if !o.Success {
			failed = append(failed, o.Source)
		}
	}

	s.log.Info("Crawl run complete",
		logger.String("run_id", batch.RunID.String()),
		logger.Int("new_articles", len(batch.Articles)),
		logger.Int("saved", saved),
		logger.Int("sources_succeeded", batch.Succeeded()),
		logger.Int("sources_failed", batch.Failed()),
		logger.Strings("failed_sources", failed),
		logger.Duration("duration", batch.Duration()),
	)
}

// Stop cancels the daily trigger and waits for in-flight runs, up to ctx's
// deadline. It is safe to call more than once.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	cronDone := s.cron.Stop().Done()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-cronDone
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("Scheduler stop timed out with a run in progress")
		return ctx.Err()
	}
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Status reports the scheduler state and store statistics.
func (s *Scheduler) Status(ctx context.Context) Status {
	s.mu.Lock()
	st := Status{
		Running:        s.running.Load(),
		Stopped:        s.stopped,
		NotifiersCount: len(s.notifiers),
	}
	if !s.stopped {
		st.ScheduledJobs = len(s.cron.Entries())
	}
	if s.lastRun != nil {
		last := *s.lastRun
		st.LastRun = &last
	}
	if s.started && !s.stopped {
		if next := s.cron.Entry(s.entry).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	s.mu.Unlock()

	stats, err := s.store.Statistics(ctx)
	if err != nil {
		st.DatabaseError = err.Error()
	} else {
		st.Database = &stats
	}
	return st
}
