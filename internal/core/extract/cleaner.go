package extract

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	periodRuns  = regexp.MustCompile(`\.{3,}`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
	pageMarker  = regexp.MustCompile(`(?m)^\s*-{2,}\s*[Pp]age\s+\d+\s*-{2,}\s*$`)
)

// CleanText normalizes extracted page text regardless of its source:
// whitespace runs collapse to single spaces, non-printables are dropped,
// 3+ periods become an ellipsis, 3+ newlines become one blank line.
func CleanText(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	s = b.String()

	s = spaceRuns.ReplaceAllString(s, " ")
	s = periodRuns.ReplaceAllString(s, "...")
	s = newlineRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// WordCount counts whitespace-separated tokens in cleaned text.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// stripPageMarkers removes structural separators (form feeds, "--- Page N ---"
// lines) so the born-digital decision measures real content only.
func stripPageMarkers(s string) string {
	s = strings.ReplaceAll(s, "\f", "")
	return pageMarker.ReplaceAllString(s, "")
}
