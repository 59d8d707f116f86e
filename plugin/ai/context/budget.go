package context

import "unicode/utf8"

// Size limits of a payload.
const (
	MaxContextChars   = 6000
	MaxRecentChanges  = 50
	MaxLogbookEntries = 100

	truncationMarker = "..."
)

// truncateSummary cuts s to at most limit bytes on a rune boundary. A cut
// summary ends with the truncation marker and still fits the limit.
func truncateSummary(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	if limit <= len(truncationMarker) {
		return truncationMarker[:max(limit, 0)]
	}

	cut := limit - len(truncationMarker)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}
