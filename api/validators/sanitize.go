package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims, drops control characters and caps the result at maxLen runes.
// Product names and search terms are user supplied and may be multi-byte.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}
