package agent

import (
	"regexp"
	"strings"
)

// markdownPatterns are cheap signals that a response is markdown and
// worth rendering rather than printing raw: headers, bold/italic,
// links, code fences, bullet and numbered lists.
var markdownPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^#+\s`),
	regexp.MustCompile(`\*\*.*\*\*`),
	regexp.MustCompile(`__.*__`),
	regexp.MustCompile(`\*.*\* `),
	regexp.MustCompile(`_.*_`),
	regexp.MustCompile(`\[.*\]\(.*\)`),
	regexp.MustCompile("```"),
	regexp.MustCompile(`(?m)^\s*[-*+]\s`),
	regexp.MustCompile(`(?m)^\s*\d+\.\s`),
}

// IsMarkdown reports whether text likely contains markdown formatting.
func IsMarkdown(text string) bool {
	for _, p := range markdownPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

var h1Pattern = regexp.MustCompile(`(?m)^#\s+(.+?)(?:\n|$)`)

// ExtractMarkdownTitle returns the first H1 header, or "".
func ExtractMarkdownTitle(content string) string {
	m := h1Pattern.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
