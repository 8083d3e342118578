package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/store"
)

var now = time.Date(2026, 1, 22, 9, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T) *store.Store {
	t.Helper()

	ctx := context.Background()
	s, err := store.Open(ctx, store.DriverSQLite, ":memory:",
		store.WithClock(func() time.Time { return now }),
		store.WithLocation(time.UTC),
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err = s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return s
}

func article(url, category string, crawled time.Time) domain.Article {
	return domain.Article{
		Title:      "Title for " + url,
		URL:        url,
		Source:     "Example",
		Category:   category,
		SourceKind: domain.KindStatic,
		Summary:    "summary",
		CrawlTime:  crawled,
	}
}

func TestSave_CountsOnlyNewURLs(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	ctx := context.Background()

	n, err := s.Save(ctx, []domain.Article{
		article("https://a.example/1", "finance", now),
		article("https://a.example/2", "finance", now),
	})
	if err != nil || n != 2 {
		t.Fatalf("Save() = %d, %v; want 2", n, err)
	}

	n, err = s.Save(ctx, []domain.Article{
		article("https://a.example/2", "finance", now),
		article("https://a.example/3", "tech", now),
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Save() = %d, want 1 for one conflicting url", n)
	}
}

func TestSave_SkipsInvalidAndEmpty(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	ctx := context.Background()

	if n, err := s.Save(ctx, nil); n != 0 || err != nil {
		t.Errorf("Save(nil) = %d, %v", n, err)
	}

	n, err := s.Save(ctx, []domain.Article{{URL: "https://no-title.example"}})
	if err != nil || n != 0 {
		t.Errorf("Save(untitled) = %d, %v", n, err)
	}
}

func TestRecent_WindowAndRoundTrip(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	ctx := context.Background()

	published := now.Add(-2 * time.Hour)
	fresh := article("https://a.example/fresh", "finance", now.Add(-time.Hour))
	fresh.PublishTime = &published
	old := article("https://a.example/old", "finance", now.AddDate(0, 0, -40))

	if _, err := s.Save(ctx, []domain.Article{fresh, old}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Recent(ctx, 30)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Recent() len = %d, want 1", len(got))
	}
	a := got[0]
	if a.URL != fresh.URL || a.Title != fresh.Title || a.SourceKind != domain.KindStatic {
		t.Errorf("round trip = %+v", a)
	}
	if a.PublishTime == nil || !a.PublishTime.Equal(published) {
		t.Errorf("PublishTime = %v, want %v", a.PublishTime, published)
	}
	if a.ID == 0 {
		t.Error("ID not populated")
	}
}

func TestStatistics(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, []domain.Article{
		article("https://a.example/1", "finance", now),
		article("https://a.example/2", "finance", now.Add(-time.Hour)),
		article("https://a.example/3", "tech", now.AddDate(0, 0, -1)),
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.TotalCount != 3 || stats.TodayCount != 2 || stats.PendingCount != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.CategoryCounts["finance"] != 2 || stats.CategoryCounts["tech"] != 1 {
		t.Errorf("CategoryCounts = %v", stats.CategoryCounts)
	}
}

func TestPushBookkeeping(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, []domain.Article{
		article("https://a.example/1", "finance", now.Add(-2*time.Hour)),
		article("https://a.example/2", "finance", now.Add(-time.Hour)),
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	pending, err := s.PendingForPush(ctx, 1)
	if err != nil || len(pending) != 1 || pending[0].URL != "https://a.example/1" {
		t.Fatalf("PendingForPush(1) = %+v, %v", pending, err)
	}

	if err = s.MarkPushed(ctx, []int64{pending[0].ID}); err != nil {
		t.Fatalf("MarkPushed() error = %v", err)
	}

	pending, err = s.PendingForPush(ctx, 0)
	if err != nil || len(pending) != 1 || pending[0].URL != "https://a.example/2" {
		t.Errorf("PendingForPush(0) = %+v, %v", pending, err)
	}

	all, _ := s.Recent(ctx, 1)
	for _, a := range all {
		if a.URL == "https://a.example/1" && (!a.IsPushed || a.PushTime == nil) {
			t.Errorf("article not marked pushed: %+v", a)
		}
	}
}

func TestExistsByDateAndPurge(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, []domain.Article{
		article("https://a.example/today", "finance", now),
		article("https://a.example/yesterday", "finance", now.AddDate(0, 0, -1)),
		article("https://a.example/ancient", "finance", now.AddDate(0, 0, -100)),
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if ok, _ := s.Exists(ctx, "https://a.example/today"); !ok {
		t.Error("Exists(today) = false")
	}
	if ok, _ := s.Exists(ctx, "https://a.example/missing"); ok {
		t.Error("Exists(missing) = true")
	}

	day, err := s.ByDate(ctx, now.AddDate(0, 0, -1))
	if err != nil || len(day) != 1 || day[0].URL != "https://a.example/yesterday" {
		t.Errorf("ByDate() = %+v, %v", day, err)
	}

	purged, err := s.PurgeOlderThan(ctx, 30)
	if err != nil || purged != 1 {
		t.Errorf("PurgeOlderThan() = %d, %v", purged, err)
	}
	if _, err = s.PurgeOlderThan(ctx, 0); err == nil {
		t.Error("PurgeOlderThan(0) error = nil")
	}
}

func TestCrawlOutcomes(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	ctx := context.Background()

	outcomes := []domain.CrawlOutcome{
		{Source: "A", Category: "finance", Kind: domain.KindFeed, Success: true, ArticleCount: 4, CrawlTime: now.Add(-time.Minute)},
		{Source: "B", Category: "finance", Kind: domain.KindStatic, Success: false, Error: "boom", CrawlTime: now},
	}
	for _, o := range outcomes {
		if err := s.RecordCrawlOutcome(ctx, o); err != nil {
			t.Fatalf("RecordCrawlOutcome() error = %v", err)
		}
	}

	got, err := s.RecentOutcomes(ctx, 10)
	if err != nil || len(got) != 2 {
		t.Fatalf("RecentOutcomes() = %+v, %v", got, err)
	}
	if got[0].Source != "B" || got[0].Success || got[0].Error != "boom" {
		t.Errorf("newest outcome = %+v", got[0])
	}
	if got[1].Kind != domain.KindFeed || got[1].ArticleCount != 4 {
		t.Errorf("older outcome = %+v", got[1])
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	if _, err := store.Open(context.Background(), "mysql", "x"); err == nil {
		t.Error("Open(mysql) error = nil")
	}
}
