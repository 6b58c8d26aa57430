// Package textkit holds the small text-processing helpers shared by the
// search strategies and the keyword classifier.
package textkit

import (
	"strings"
	"unicode"
)

// Terms extracts lowercase alphanumeric terms from free text, in order
// of first appearance, deduplicated. Single-rune fragments are dropped.
func Terms(s string) []string {
	var terms []string
	seen := make(map[string]bool)

	var b strings.Builder
	flush := func() {
		if b.Len() < 2 {
			b.Reset()
			return
		}
		t := strings.ToLower(b.String())
		b.Reset()
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return terms
}

// FTSQuery sanitizes free text into an FTS5 MATCH expression. Each term
// is double-quoted so user input can never be parsed as query syntax;
// adjacent quoted terms are an implicit AND.
func FTSQuery(s string) string {
	terms := Terms(s)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " ")
}

// BooleanQuery renders terms for MySQL FULLTEXT boolean mode, requiring
// every term to match. Quoting keeps boolean operators in the input
// inert.
func BooleanQuery(s string) string {
	terms := Terms(s)
	if len(terms) == 0 {
		return ""
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = `+"` + t + `"`
	}
	return strings.Join(parts, " ")
}

// Excerpt trims s to at most max bytes, cutting at a word boundary when
// one is close, and appends an ellipsis. Text at or under the limit is
// returned unchanged.
func Excerpt(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \t\n") + "..."
}
