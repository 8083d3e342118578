package extractor

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// titleSelectors are tried in order; the first match longer than minTitleLength wins.
var titleSelectors = []string{
	"article h1",
	".article-title",
	".post-title",
	".entry-title",
	"h1.title",
	"h1",
	"title",
}

const minTitleLength = 5

func extractTitle(doc *goquery.Document) string {
	for _, sel := range titleSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if utf8.RuneCountInString(text) > minTitleLength {
			return text
		}
	}

	return strings.TrimSpace(doc.Find("title").First().Text())
}
