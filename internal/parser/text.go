package parser

import (
	"regexp"
	"strings"
)

var (
	nonPrintable  = regexp.MustCompile(`[^\x20-\x7E\r\n]`)
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	emailSplitter = regexp.MustCompile(`[\s<>(),;:]+`)
)

// Sanitize drops characters outside printable ASCII (keeping line breaks)
// and trims the result.
func Sanitize(text string) string {
	return strings.TrimSpace(nonPrintable.ReplaceAllString(text, ""))
}

// ValidEmail reports whether value has a local@domain.tld shape.
func ValidEmail(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && emailPattern.MatchString(value)
}

// FindEmail returns the first valid email address among the tokens of line.
func FindEmail(line string) (string, bool) {
	for _, token := range emailSplitter.Split(line, -1) {
		if ValidEmail(token) {
			return token, true
		}
	}
	return "", false
}

// splitLines returns the non-empty trimmed lines of text.
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// labelled splits "key: value" lines, lowercasing the key.
func labelled(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx == -1 {
		return "", line, false
	}
	return strings.ToLower(strings.TrimSpace(line[:idx])), strings.TrimSpace(line[idx+1:]), true
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(value string) string {
	if value == "" {
		return value
	}
	lower := strings.ToLower(value)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
