package index

import (
	"strings"
	"unicode/utf8"
)

// Ellipsis marks a truncated snippet boundary.
const Ellipsis = "…"

// DefaultSnippetLength is the default snippet window in bytes.
const DefaultSnippetLength = 120

// Snippet extracts a window of at most maxLen bytes from content, centered
// on the first case-insensitive occurrence of any query term. When no term
// occurs, the window is taken from the start. Ellipsis markers are added on
// the sides where the window does not reach the string boundary, so the
// total length never exceeds maxLen plus ellipsis overhead.
func Snippet(content, query string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSnippetLength
	}
	if content == "" {
		return ""
	}

	pos := firstTermIndex(content, query)

	start := 0
	if pos > maxLen/2 {
		start = pos - maxLen/2
	}
	end := start + maxLen
	if end >= len(content) {
		end = len(content)
		if end-start < maxLen {
			start = end - maxLen
			if start < 0 {
				start = 0
			}
		}
	}

	// Never cut inside a rune.
	for start < len(content) && !utf8.RuneStart(content[start]) {
		start++
	}
	for end > start && end < len(content) && !utf8.RuneStart(content[end]) {
		end--
	}

	snippet := content[start:end]
	if start > 0 {
		snippet = Ellipsis + snippet
	}
	if end < len(content) {
		snippet += Ellipsis
	}
	return snippet
}

// firstTermIndex locates the earliest case-insensitive occurrence of any
// whitespace-separated query term in content. Returns 0 when nothing
// matches so the window falls back to the string start.
func firstTermIndex(content, query string) int {
	lower := strings.ToLower(content)
	best := -1
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if idx := strings.Index(lower, term); idx >= 0 && (best == -1 || idx < best) {
			best = idx
		}
	}
	if best < 0 {
		return 0
	}
	return best
}
