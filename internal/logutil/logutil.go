// Package logutil formats user-supplied text for log lines.
package logutil

import (
	"strings"
	"unicode/utf8"
)

// TruncateForLog returns a single-line truncated preview for unstructured values.
// Truncation never splits a multi-byte character.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	if maxChars <= 0 || utf8.RuneCountInString(normalized) <= maxChars {
		return normalized
	}
	runes := []rune(normalized)
	return string(runes[:maxChars]) + "... [truncated]"
}

// FormatBodyForLog truncates a request or response body for debug logging.
func FormatBodyForLog(body []byte, maxBytes int) string {
	if len(body) == 0 {
		return ""
	}
	if maxBytes > 0 && len(body) > maxBytes {
		return strings.ToValidUTF8(string(body[:maxBytes]), "") + " [truncated]"
	}
	return string(body)
}
