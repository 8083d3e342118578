package common

import (
	"io"
	"maps"
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/extractor"
)

const (
	titleWidth = 48
	timeLayout = "2006-01-02 15:04"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// RenderArticles prints one row per article.
func RenderArticles(w io.Writer, articles []domain.Article) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Title", "Source", "Category", "Published", "URL"})
	for i, a := range articles {
		t.AppendRow(table.Row{
			i + 1,
			extractor.Ellipsize(a.Title, titleWidth),
			a.Source,
			a.Category,
			formatTime(a.PublishTime),
			a.URL,
		})
	}
	t.AppendFooter(table.Row{"", "Total", len(articles)})
	t.Render()
}

// RenderOutcomes prints one row per source outcome.
func RenderOutcomes(w io.Writer, outcomes []domain.CrawlOutcome) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Source", "Category", "Type", "Result", "Articles", "Error", "Time"})
	for _, o := range outcomes {
		result := "ok"
		if !o.Success {
			result = "failed"
		}
		t.AppendRow(table.Row{
			o.Source, o.Category, o.Kind, result, o.ArticleCount,
			extractor.Ellipsize(o.Error, titleWidth), o.CrawlTime.Local().Format(timeLayout),
		})
	}
	t.Render()
}

// RenderStatistics prints store totals and per-category counts.
func RenderStatistics(w io.Writer, stats domain.Statistics) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Total articles", stats.TotalCount})
	t.AppendRow(table.Row{"Crawled today", stats.TodayCount})
	t.AppendRow(table.Row{"Pending push", stats.PendingCount})
	t.AppendSeparator()
	for _, category := range slices.Sorted(maps.Keys(stats.CategoryCounts)) {
		t.AppendRow(table.Row{"Category: " + category, stats.CategoryCounts[category]})
	}
	t.Render()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
