package smtp

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagPattern   = regexp.MustCompile(`<[^<]+?>`)
	breakPattern = regexp.MustCompile(`(?i)<(?:br\s*/?|/p|/div|/h[1-6]|/li|/tr)>`)
)

// HTMLToPlain derives a plain-text fallback from an HTML body: block-level
// closers become newlines, remaining tags are stripped, and HTML entities
// are decoded.
func HTMLToPlain(body string) string {
	text := breakPattern.ReplaceAllString(body, "\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	// Collapse runs of blank lines left behind by stripped markup.
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
