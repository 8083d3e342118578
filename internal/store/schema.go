package store

// Schema statements per driver. Both dialects accept ON CONFLICT, so the
// queries in store.go are shared and only the DDL differs.
var schemas = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS news_articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			url TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			source_type TEXT NOT NULL DEFAULT '',
			publish_time TIMESTAMP NULL,
			summary TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			crawl_time TIMESTAMP NOT NULL,
			is_pushed BOOLEAN NOT NULL DEFAULT FALSE,
			push_time TIMESTAMP NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_news_articles_crawl_time ON news_articles (crawl_time)`,
		`CREATE INDEX IF NOT EXISTS idx_news_articles_category ON news_articles (category)`,
		`CREATE TABLE IF NOT EXISTS crawl_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			source_type TEXT NOT NULL DEFAULT '',
			success BOOLEAN NOT NULL,
			article_count INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			crawl_time TIMESTAMP NOT NULL
		)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS news_articles (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			url TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			source_type TEXT NOT NULL DEFAULT '',
			publish_time TIMESTAMPTZ NULL,
			summary TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			crawl_time TIMESTAMPTZ NOT NULL,
			is_pushed BOOLEAN NOT NULL DEFAULT FALSE,
			push_time TIMESTAMPTZ NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_news_articles_crawl_time ON news_articles (crawl_time)`,
		`CREATE INDEX IF NOT EXISTS idx_news_articles_category ON news_articles (category)`,
		`CREATE TABLE IF NOT EXISTS crawl_history (
			id BIGSERIAL PRIMARY KEY,
			source TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			source_type TEXT NOT NULL DEFAULT '',
			success BOOLEAN NOT NULL,
			article_count INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			crawl_time TIMESTAMPTZ NOT NULL
		)`,
	},
}
