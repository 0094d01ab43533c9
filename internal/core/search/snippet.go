package search

import (
	"strings"
	"unicode/utf8"
)

const (
	snippetMaxLen  = 300
	snippetContext = 100 // characters of lead-in before the first matched term
)

// BuildSnippet extracts a display window from cleaned page text. The window
// starts snippetContext characters before the earliest query-term hit
// (clamped to the start) and runs for at most maxLen characters, with
// ellipses marking clipped edges. Cuts land on rune boundaries so the
// snippet is always valid UTF-8. When no term occurs in the text the window
// simply starts at the beginning; that fallback is deliberate, not an error.
func BuildSnippet(text, query string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = snippetMaxLen
	}
	if text == "" {
		return ""
	}

	start := 0
	if pos := earliestTermPosition(text, query); pos >= 0 {
		start = pos - snippetContext
		if start < 0 {
			start = 0
		}
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}

	end := start + maxLen
	if end >= len(text) {
		end = len(text)
	} else {
		for end > start && !utf8.RuneStart(text[end]) {
			end--
		}
	}

	snippet := text[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}
	return snippet
}

// earliestTermPosition finds the first byte offset at which any individual
// query term appears, case-insensitively. Matching runs over the original
// text, not a lowered copy, so the offset is always a valid rune start in
// the text being sliced.
func earliestTermPosition(text, query string) int {
	best := -1
	for _, term := range strings.Fields(query) {
		if pos := indexFold(text, term); pos >= 0 && (best < 0 || pos < best) {
			best = pos
		}
	}
	return best
}

// indexFold is a case-insensitive strings.Index anchored to rune starts.
func indexFold(s, substr string) int {
	n := len(substr)
	if n == 0 {
		return -1
	}
	for i := range s {
		if i+n > len(s) {
			break
		}
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}
