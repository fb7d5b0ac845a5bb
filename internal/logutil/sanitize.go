package logutil

import "strings"

// SanitizeForLog removes newlines and control characters from user-provided
// strings so a caller cannot forge log entries.
func SanitizeForLog(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Truncate sanitizes s and cuts it to at most max runes, appending "..." when
// shortened. Commands are logged through this.
func Truncate(s string, max int) string {
	s = SanitizeForLog(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
