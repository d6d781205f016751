package validators

import "strings"

// SanitizeString trims surrounding whitespace and truncates to maxLen
// runes. Truncation counts runes so multi-byte input is never split
// mid-character.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return trimmed
}
