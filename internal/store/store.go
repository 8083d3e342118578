// Package store persists articles and crawl outcomes through sqlx. It runs
// on SQLite by default and on PostgreSQL when configured.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/jonesrussell/fincrawl/internal/domain"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultPingTimeout     = 5 * time.Second
	hoursPerDay            = 24
)

const articleColumns = `id, title, url, source, category, source_type, publish_time,
	summary, content, crawl_time, is_pushed, push_time`

const insertArticle = `INSERT INTO news_articles
	(title, url, source, category, source_type, publish_time, summary, content, crawl_time, is_pushed)
	VALUES (:title, :url, :source, :category, :source_type, :publish_time, :summary, :content, :crawl_time, FALSE)
	ON CONFLICT (url) DO NOTHING`

const insertOutcome = `INSERT INTO crawl_history
	(source, category, source_type, success, article_count, error_message, crawl_time)
	VALUES (:source, :category, :source_type, :success, :article_count, :error_message, :crawl_time)`

// Store is the article store.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
	loc *time.Location
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for "today" and lookback windows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the zone in which calendar days are counted.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Open connects to the database and pings it. For SQLite file databases the
// parent directory is created.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// One writer; also keeps :memory: databases on a single connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db, opts...), nil
}

// New wraps an existing connection.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func ensureDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts, ok := schemas[s.db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", s.db.DriverName())
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Save inserts articles and returns how many were new. An article whose URL
// is already stored is skipped without error.
func (s *Store) Save(ctx context.Context, articles []domain.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	saved := 0
	for i := range articles {
		a := articles[i]
		if !a.Valid() {
			continue
		}
		a.CrawlTime = a.CrawlTime.UTC()
		if a.PublishTime != nil {
			t := a.PublishTime.UTC()
			a.PublishTime = &t
		}

		res, execErr := tx.NamedExecContext(ctx, insertArticle, a)
		if execErr != nil {
			return 0, fmt.Errorf("failed to insert article %s: %w", a.URL, execErr)
		}
		n, rowsErr := res.RowsAffected()
		if rowsErr != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", rowsErr)
		}
		saved += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit articles: %w", err)
	}
	return saved, nil
}

// Recent returns articles crawled in the last days days, newest first.
func (s *Store) Recent(ctx context.Context, days int) ([]domain.Article, error) {
	cutoff := s.now().Add(-time.Duration(days) * hoursPerDay * time.Hour).UTC()
	query := s.db.Rebind(`SELECT ` + articleColumns + ` FROM news_articles
		WHERE crawl_time >= ? ORDER BY crawl_time DESC`)

	return s.selectArticles(ctx, query, cutoff)
}

// ByDate returns articles crawled on the calendar day of day.
func (s *Store) ByDate(ctx context.Context, day time.Time) ([]domain.Article, error) {
	start := startOfDay(day, s.loc)
	end := start.AddDate(0, 0, 1)
	query := s.db.Rebind(`SELECT ` + articleColumns + ` FROM news_articles
		WHERE crawl_time >= ? AND crawl_time < ? ORDER BY crawl_time DESC`)

	return s.selectArticles(ctx, query, start.UTC(), end.UTC())
}

// PendingForPush returns unpushed articles, oldest first. A limit of zero or
// less returns all of them.
func (s *Store) PendingForPush(ctx context.Context, limit int) ([]domain.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM news_articles
		WHERE is_pushed = FALSE ORDER BY crawl_time ASC`
	if limit > 0 {
		return s.selectArticles(ctx, s.db.Rebind(query+` LIMIT ?`), limit)
	}
	return s.selectArticles(ctx, query)
}

// MarkPushed flags articles as delivered.
func (s *Store) MarkPushed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE news_articles SET is_pushed = TRUE, push_time = ? WHERE id IN (?)`,
		s.now().UTC(), ids)
	if err != nil {
		return fmt.Errorf("failed to build mark pushed query: %w", err)
	}
	if _, err = s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to mark articles pushed: %w", err)
	}
	return nil
}

// Exists reports whether url is stored.
func (s *Store) Exists(ctx context.Context, url string) (bool, error) {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM news_articles WHERE url = ?`)
	if err := s.db.GetContext(ctx, &n, query, url); err != nil {
		return false, fmt.Errorf("failed to check article: %w", err)
	}
	return n > 0, nil
}

// PurgeOlderThan deletes articles and history older than days days and
// returns the number of articles removed.
func (s *Store) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, errors.New("purge window must be positive")
	}
	cutoff := s.now().Add(-time.Duration(days) * hoursPerDay * time.Hour).UTC()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM news_articles WHERE crawl_time < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge articles: %w", err)
	}
	if _, err = s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM crawl_history WHERE crawl_time < ?`), cutoff); err != nil {
		return 0, fmt.Errorf("failed to purge crawl history: %w", err)
	}
	return res.RowsAffected()
}

// RecordCrawlOutcome appends one source result to the crawl history.
func (s *Store) RecordCrawlOutcome(ctx context.Context, outcome domain.CrawlOutcome) error {
	outcome.CrawlTime = outcome.CrawlTime.UTC()
	if _, err := s.db.NamedExecContext(ctx, insertOutcome, outcome); err != nil {
		return fmt.Errorf("failed to record crawl outcome: %w", err)
	}
	return nil
}

// RecentOutcomes returns the latest crawl history rows, newest first.
func (s *Store) RecentOutcomes(ctx context.Context, limit int) ([]domain.CrawlOutcome, error) {
	query := s.db.Rebind(`SELECT source, category, source_type, success, article_count, error_message, crawl_time
		FROM crawl_history ORDER BY crawl_time DESC, id DESC LIMIT ?`)

	var out []domain.CrawlOutcome
	if err := s.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list crawl history: %w", err)
	}
	return out, nil
}

// Statistics counts stored articles.
func (s *Store) Statistics(ctx context.Context) (domain.Statistics, error) {
	stats := domain.Statistics{CategoryCounts: map[string]int{}}

	if err := s.db.GetContext(ctx, &stats.TotalCount, `SELECT COUNT(*) FROM news_articles`); err != nil {
		return stats, fmt.Errorf("failed to count articles: %w", err)
	}

	today := startOfDay(s.now(), s.loc).UTC()
	query := s.db.Rebind(`SELECT COUNT(*) FROM news_articles WHERE crawl_time >= ?`)
	if err := s.db.GetContext(ctx, &stats.TodayCount, query, today); err != nil {
		return stats, fmt.Errorf("failed to count today's articles: %w", err)
	}

	if err := s.db.GetContext(ctx, &stats.PendingCount,
		`SELECT COUNT(*) FROM news_articles WHERE is_pushed = FALSE`); err != nil {
		return stats, fmt.Errorf("failed to count pending articles: %w", err)
	}

	var rows []struct {
		Category string `db:"category"`
		Count    int    `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT category, COUNT(*) AS count FROM news_articles GROUP BY category`); err != nil {
		return stats, fmt.Errorf("failed to count categories: %w", err)
	}
	for _, r := range rows {
		stats.CategoryCounts[r.Category] = r.Count
	}

	return stats, nil
}

func (s *Store) selectArticles(ctx context.Context, query string, args ...any) ([]domain.Article, error) {
	var out []domain.Article
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select articles: %w", err)
	}
	if out == nil {
		out = []domain.Article{}
	}
	return out, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
