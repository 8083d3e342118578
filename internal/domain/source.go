package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceKind selects the spider variant that handles a source.
type SourceKind string

const (
	KindStatic  SourceKind = "static"
	KindFeed    SourceKind = "feed"
	KindBrowser SourceKind = "browser"
)

// ErrUnknownKind is returned for source kinds no spider handles.
var ErrUnknownKind = errors.New("unknown source kind")

// ParseSourceKind maps configuration spellings onto a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "static", "scrapy", "html", "static-html":
		return KindStatic, nil
	case "feed", "rss", "atom":
		return KindFeed, nil
	case "browser", "playwright", "browser-driven":
		return KindBrowser, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Selectors are CSS selectors for list pages. Empty values fall back to heuristics.
type Selectors struct {
	List  string `json:"list,omitempty"`
	Title string `json:"title,omitempty"`
	Link  string `json:"link,omitempty"`
	Date  string `json:"date,omitempty"`
}

// BrowserOptions tune the browser-driven spider.
type BrowserOptions struct {
	Stealth  bool          `json:"stealth"`
	Proxy    string        `json:"proxy,omitempty"`
	WaitTime time.Duration `json:"wait_time"`
	Headless *bool         `json:"headless,omitempty"`
}

// SourceDescriptor describes one configured news source. It is read-only during a crawl.
type SourceDescriptor struct {
	Name            string         `json:"name"`
	Category        string         `json:"category"`
	Group           string         `json:"group,omitempty"`
	Kind            SourceKind     `json:"type"`
	BaseURL         string         `json:"url"`
	ListURL         string         `json:"list_url,omitempty"`
	FeedURL         string         `json:"rss_url,omitempty"`
	Encoding        string         `json:"encoding,omitempty"`
	Selectors       Selectors      `json:"selectors"`
	ExcludePatterns []string       `json:"exclude_patterns,omitempty"`
	MaxItems        int            `json:"max_items,omitempty"`
	Enabled         bool           `json:"enabled"`
	Browser         BrowserOptions `json:"browser"`
}

// ListTarget is the page holding the article list.
func (s SourceDescriptor) ListTarget() string {
	if s.ListURL != "" {
		return s.ListURL
	}
	return s.BaseURL
}

// Validate checks the fields every spider relies on.
func (s SourceDescriptor) Validate() error {
	if s.Name == "" {
		return errors.New("source name is required")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("source %q: url is required", s.Name)
	}
	if _, err := ParseSourceKind(string(s.Kind)); err != nil {
		return fmt.Errorf("source %q: %w", s.Name, err)
	}
	return nil
}
