package normalize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRe   = regexp.MustCompile(`<[^>]*>`)
	lineBreakRe = regexp.MustCompile(`(?i)<\s*(br\s*/?|/p|/div|/li)\s*>`)
	spaceRunRe  = regexp.MustCompile(`[ \t\r\x{00a0}]+`)
	blankLineRe = regexp.MustCompile(`\n{3,}`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// Text strips HTML tags, collapses whitespace runs to single spaces,
// collapses blank-line runs, and decodes the five basic HTML entities.
func Text(s string) string {
	if s == "" {
		return ""
	}
	// Keep paragraph structure as newlines before dropping tags.
	s = lineBreakRe.ReplaceAllString(s, "\n")
	s = htmlTagRe.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	s = spaceRunRe.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankLineRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
