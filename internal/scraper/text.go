package scraper

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var labelSeparator = regexp.MustCompile(`^\s*[:\-–]\s*`)

// CleanLine folds compatibility characters (non-breaking spaces, full-width
// digits) and collapses all whitespace runs into single spaces
func CleanLine(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// CleanBlock normalizes multi-line text, keeping line structure but trimming
// each line and dropping leading/trailing blank lines
func CleanBlock(s string) string {
	lines := strings.Split(norm.NFKC.String(s), "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// StripLabel removes a leading label such as "Budget:" from text, case-insensitively
func StripLabel(s string, labels ...string) string {
	for _, label := range labels {
		if len(s) >= len(label) && strings.EqualFold(s[:len(label)], label) {
			rest := s[len(label):]
			return strings.TrimSpace(labelSeparator.ReplaceAllString(rest, ""))
		}
	}
	return s
}
