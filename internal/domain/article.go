// Package domain defines the records shared by every stage of a crawl.
package domain

import "time"

// Article is one crawled news item. URL is its identity key.
type Article struct {
	ID          int64      `db:"id"           json:"id,omitempty"`
	Title       string     `db:"title"        json:"title"`
	URL         string     `db:"url"          json:"url"`
	Source      string     `db:"source"       json:"source"`
	Category    string     `db:"category"     json:"category"`
	SourceKind  SourceKind `db:"source_type"  json:"source_type"`
	PublishTime *time.Time `db:"publish_time" json:"publish_time,omitempty"`
	Summary     string     `db:"summary"      json:"summary,omitempty"`
	Content     string     `db:"content"      json:"content,omitempty"`
	CrawlTime   time.Time  `db:"crawl_time"   json:"crawl_time"`

	// Push bookkeeping belongs to the notification side; the crawler only reads it.
	IsPushed bool       `db:"is_pushed" json:"is_pushed"`
	PushTime *time.Time `db:"push_time" json:"push_time,omitempty"`
}

// Valid reports whether the article carries the minimum a spider must produce.
func (a *Article) Valid() bool {
	return a.Title != "" && a.URL != ""
}

// CrawlOutcome records how one source fared in one run.
type CrawlOutcome struct {
	Source       string     `db:"source"        json:"source"`
	Category     string     `db:"category"      json:"category"`
	Kind         SourceKind `db:"source_type"   json:"source_type"`
	Success      bool       `db:"success"       json:"success"`
	ArticleCount int        `db:"article_count" json:"article_count"`
	Error        string     `db:"error_message" json:"error,omitempty"`
	CrawlTime    time.Time  `db:"crawl_time"    json:"crawl_time"`
}

// Statistics summarises the article store.
type Statistics struct {
	TotalCount     int            `json:"total_count"`
	TodayCount     int            `json:"today_count"`
	PendingCount   int            `json:"pending_count"`
	CategoryCounts map[string]int `json:"category_counts"`
}
