// Package dedup filters articles that were already seen by URL, normalized
// title, or content fingerprint.
package dedup

import (
	"crypto/md5" //nolint:gosec // fingerprint, not a security boundary
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/jonesrussell/fincrawl/internal/domain"
)

const (
	summaryPrefixLength = 100
	timeLayout          = "2006-01-02T15:04:05"
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// Stats reports the size of each index.
type Stats struct {
	URLs         int `json:"urls"`
	Titles       int `json:"titles"`
	Fingerprints int `json:"fingerprints"`
}

// Deduplicator holds the seen-item index for one orchestrator.
// Mutation is expected from a single run at a time; the mutex keeps
// concurrent Stats readers safe.
type Deduplicator struct {
	mu           sync.RWMutex
	urls         map[string]struct{}
	titles       map[string][]string
	fingerprints map[string]struct{}
}

// New returns an empty Deduplicator.
func New() *Deduplicator {
	d := &Deduplicator{}
	d.reset()
	return d
}

func (d *Deduplicator) reset() {
	d.urls = make(map[string]struct{})
	d.titles = make(map[string][]string)
	d.fingerprints = make(map[string]struct{})
}

// NormalizeTitle lowercases title, drops everything but letters, digits,
// underscores and whitespace, and collapses whitespace.
// Every Unicode space (NBSP, U+3000 and the like) counts as whitespace.
func NormalizeTitle(title string) string {
	title = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, strings.ToLower(title))
	title = nonWord.ReplaceAllString(title, "")
	return strings.Join(strings.Fields(title), " ")
}

// IsSeen reports whether url, or a title that normalizes the same, was seen before.
func (d *Deduplicator) IsSeen(url, title string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isSeenLocked(url, title)
}

func (d *Deduplicator) isSeenLocked(url, title string) bool {
	if _, ok := d.urls[url]; ok {
		return true
	}
	if title == "" {
		return false
	}
	_, ok := d.titles[NormalizeTitle(title)]
	return ok
}

// AddSeen records url and, when title is non-empty, its normalized form.
func (d *Deduplicator) AddSeen(url, title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addSeenLocked(url, title)
}

func (d *Deduplicator) addSeenLocked(url, title string) {
	d.urls[url] = struct{}{}
	if title == "" {
		return
	}
	key := NormalizeTitle(title)
	d.titles[key] = append(d.titles[key], url)
}

// ContentFingerprint hashes title, source, publish time and the first 100
// characters of the summary.
func ContentFingerprint(a domain.Article) string {
	var publish string
	if a.PublishTime != nil {
		publish = a.PublishTime.Format(timeLayout)
	}

	content := a.Title + "|" + a.Source + "|" + publish
	if a.Summary != "" {
		content += "|" + firstRunes(a.Summary, summaryPrefixLength)
	}

	sum := md5.Sum([]byte(content)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

func firstRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Deduplicate returns the articles not seen before, in input order, and
// records them as seen.
func (d *Deduplicator) Deduplicate(articles []domain.Article) []domain.Article {
	d.mu.Lock()
	defer d.mu.Unlock()

	unique := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if d.isSeenLocked(a.URL, a.Title) {
			continue
		}
		fp := ContentFingerprint(a)
		if _, ok := d.fingerprints[fp]; ok {
			continue
		}
		d.addSeenLocked(a.URL, a.Title)
		d.fingerprints[fp] = struct{}{}
		unique = append(unique, a)
	}
	return unique
}

// LoadFromDatabase seeds the URL index from persisted history. Titles and
// fingerprints are not derived for historical rows.
func (d *Deduplicator) LoadFromDatabase(urls []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range urls {
		d.urls[u] = struct{}{}
	}
}

// Clear resets every index.
func (d *Deduplicator) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
}

// Stats returns the current index sizes.
func (d *Deduplicator) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Stats{
		URLs:         len(d.urls),
		Titles:       len(d.titles),
		Fingerprints: len(d.fingerprints),
	}
}
