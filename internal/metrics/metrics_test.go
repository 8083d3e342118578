package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jonesrussell/fincrawl/internal/metrics"
)

func TestSourceCrawled(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())

	m.SourceCrawled("A", 5, 3, true)
	m.SourceCrawled("B", 0, 0, false)
	m.SourceCrawled("A", 2, 1, true)

	if got := testutil.ToFloat64(m.ArticlesCrawled.WithLabelValues("A")); got != 7 {
		t.Errorf("articles_crawled_total{A} = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.ArticlesNew); got != 4 {
		t.Errorf("articles_new_total = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.SourceFailures.WithLabelValues("B")); got != 1 {
		t.Errorf("source_failures_total{B} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SourceFailures.WithLabelValues("A")); got != 0 {
		t.Errorf("source_failures_total{A} = %v, want 0", got)
	}
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	at := time.Date(2026, 1, 22, 8, 0, 0, 0, time.UTC)

	m.RunStarted()
	if got := testutil.ToFloat64(m.RunInProgress); got != 1 {
		t.Errorf("run_in_progress = %v, want 1", got)
	}

	m.RunFinished(90*time.Second, at)
	m.Saved(12)

	if got := testutil.ToFloat64(m.RunInProgress); got != 0 {
		t.Errorf("run_in_progress = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.LastRunTimestamp); got != float64(at.Unix()) {
		t.Errorf("last_run_timestamp_seconds = %v", got)
	}
	if got := testutil.ToFloat64(m.ArticlesSaved); got != 12 {
		t.Errorf("articles_saved_total = %v, want 12", got)
	}
	if n := testutil.CollectAndCount(m.RunDuration); n != 1 {
		t.Errorf("run_duration_seconds series = %d, want 1", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	m.SourceCrawled("A", 1, 1, true)
	m.Saved(1)
	m.RunStarted()
	m.RunFinished(time.Second, time.Now())
}
