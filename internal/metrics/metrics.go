// Package metrics exposes Prometheus metrics for crawl runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric.
const Namespace = "fincrawl"

// Metrics holds the crawl metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ArticlesCrawled  *prometheus.CounterVec
	ArticlesNew      prometheus.Counter
	ArticlesSaved    prometheus.Counter
	SourceFailures   *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	LastRunTimestamp prometheus.Gauge
	RunInProgress    prometheus.Gauge
}

// New creates and registers the metrics on reg, or on the default registerer
// when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ArticlesCrawled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "articles_crawled_total",
			Help:      "Articles produced by spiders before deduplication",
		}, []string{"source"}),
		ArticlesNew: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "articles_new_total",
			Help:      "Articles that survived deduplication",
		}),
		ArticlesSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "articles_saved_total",
			Help:      "Articles inserted into the store",
		}),
		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "source_failures_total",
			Help:      "Sources that produced no articles in a run",
		}, []string{"source"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a full crawl run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last crawl run finished",
		}),
		RunInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_in_progress",
			Help:      "1 while a crawl run is executing",
		}),
	}
}

// SourceCrawled records one source result.
func (m *Metrics) SourceCrawled(source string, produced, fresh int, success bool) {
	if m == nil {
		return
	}
	m.ArticlesCrawled.WithLabelValues(source).Add(float64(produced))
	m.ArticlesNew.Add(float64(fresh))
	if !success {
		m.SourceFailures.WithLabelValues(source).Inc()
	}
}

// Saved records articles inserted by the store.
func (m *Metrics) Saved(n int) {
	if m == nil {
		return
	}
	m.ArticlesSaved.Add(float64(n))
}

// RunStarted marks a run as in progress.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunInProgress.Set(1)
}

// RunFinished records a completed run.
func (m *Metrics) RunFinished(d time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.RunInProgress.Set(0)
	m.RunDuration.Observe(d.Seconds())
	m.LastRunTimestamp.Set(float64(at.Unix()))
}
