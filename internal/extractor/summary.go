package extractor

import (
	"strings"

	"github.com/clipperhouse/uax29/v2/sentences"
)

const (
	summaryWindow    = 1000
	summaryMaxLength = 200
)

// Summarize returns the first sentence of content's opening window, capped at
// 200 characters with an ellipsis.
func Summarize(content string) string {
	if content == "" {
		return ""
	}

	if first := firstSentence(Truncate(content, summaryWindow)); first != "" {
		return Ellipsize(first, summaryMaxLength)
	}

	return Ellipsize(content, summaryMaxLength)
}

func firstSentence(text string) string {
	iter := sentences.FromString(text)
	for iter.Next() {
		if s := strings.TrimSpace(iter.Value()); s != "" {
			return s
		}
	}
	return ""
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Ellipsize truncates s to n runes and appends "..." when anything was cut.
func Ellipsize(s string, n int) string {
	if cut := Truncate(s, n); len(cut) < len(s) {
		return cut + "..."
	}
	return s
}
