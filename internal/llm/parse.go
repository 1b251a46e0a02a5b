package llm

import "strings"

// maxStructuredResponseBytes caps model output size before JSON parsing.
const maxStructuredResponseBytes = 10 * 1024

// StripCodeFences removes ```json ... ``` wrapping from model output.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Remove opening fence (with optional language tag).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		// Remove closing fence.
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// SizeOK reports whether a structured model response is small enough to parse.
func SizeOK(s string) bool {
	return len(s) <= maxStructuredResponseBytes
}

// Truncate shortens s to at most n bytes for logging.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
