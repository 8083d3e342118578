package spider

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloudflare/ahocorasick"

	"github.com/jonesrussell/fincrawl/internal/domain"
)

// defaultListSelector is used when a source configures no list selector.
const defaultListSelector = ".news-list li"

// ListItem is one entry of a list page.
type ListItem struct {
	Title string
	URL   string
	Date  string
}

// ParseList extracts list items from a list page. Empty title or link
// selectors mean the list element itself. At most maxItems list elements are
// examined; items whose resolved URL contains an exclude pattern are dropped.
func ParseList(html string, src domain.SourceDescriptor, maxItems int) []ListItem {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	return parseListDocument(doc, src, maxItems)
}

func parseListDocument(doc *goquery.Document, src domain.SourceDescriptor, maxItems int) []ListItem {
	listSel := src.Selectors.List
	if listSel == "" {
		listSel = defaultListSelector
	}

	base, _ := url.Parse(src.BaseURL)
	exclude := newExcluder(src.ExcludePatterns)

	var items []ListItem
	doc.Find(listSel).EachWithBreak(func(i int, elem *goquery.Selection) bool {
		if maxItems > 0 && i >= maxItems {
			return false
		}

		titleElem := pick(elem, src.Selectors.Title)
		linkElem := pick(elem, src.Selectors.Link)
		if titleElem.Length() == 0 || linkElem.Length() == 0 {
			return true
		}

		title := strings.TrimSpace(titleElem.Text())
		link := strings.TrimSpace(linkElem.AttrOr("href", ""))
		if title == "" || link == "" {
			return true
		}

		link = resolve(base, link)
		if exclude.matches(link) {
			return true
		}

		item := ListItem{Title: title, URL: link}
		if src.Selectors.Date != "" {
			item.Date = strings.TrimSpace(elem.Find(src.Selectors.Date).First().Text())
		}
		items = append(items, item)
		return true
	})

	return items
}

func pick(elem *goquery.Selection, sel string) *goquery.Selection {
	if sel == "" {
		return elem
	}
	return elem.Find(sel).First()
}

// resolve makes link absolute against base unless it already starts with http.
func resolve(base *url.URL, link string) string {
	if strings.HasPrefix(link, "http") || base == nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}

// excluder matches URLs against substring patterns in one pass.
type excluder struct {
	matcher *ahocorasick.Matcher
}

func newExcluder(patterns []string) excluder {
	var nonEmpty []string
	for _, p := range patterns {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return excluder{}
	}
	return excluder{matcher: ahocorasick.NewStringMatcher(nonEmpty)}
}

func (e excluder) matches(link string) bool {
	if e.matcher == nil {
		return false
	}
	return len(e.matcher.Match([]byte(link))) > 0
}
