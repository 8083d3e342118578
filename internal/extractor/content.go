package extractor

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// noiseSelectors are removed before the body is located.
const noiseSelectors = "script, style, nav, header, footer, aside, " +
	".sidebar, .advertisement, .ad, .comments, .comment"

var contentSelectors = []string{
	"article",
	".article-content",
	".post-content",
	".entry-content",
	".article-body",
	".post-body",
	".content",
	"#article-content",
	"#content",
	".main-content",
}

// minParagraphLength filters out bylines, captions and other short fragments.
const minParagraphLength = 10

func extractContent(doc *goquery.Document) string {
	doc.Find(noiseSelectors).Remove()

	var container *goquery.Selection
	for _, sel := range contentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			container = s
			break
		}
	}
	if container == nil {
		container = doc.Find("body").First()
		if container.Length() == 0 {
			return ""
		}
	}

	paragraphs := container.Find("p")
	if paragraphs.Length() == 0 {
		return strings.Join(TextLines(container), "\n")
	}

	parts := make([]string, 0, paragraphs.Length())
	paragraphs.Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(text) > minParagraphLength {
			parts = append(parts, text)
		}
	})

	return strings.Join(parts, "\n\n")
}

// TextLines returns the non-empty, trimmed lines of every text node under sel.
func TextLines(sel *goquery.Selection) []string {
	var lines []string
	for _, n := range sel.Nodes {
		collectText(n, &lines)
	}
	return lines
}

func collectText(n *html.Node, lines *[]string) {
	if n.Type == html.TextNode {
		for _, line := range strings.Split(n.Data, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				*lines = append(*lines, line)
			}
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, lines)
	}
}
