package util

import (
	"strings"
)

// BuildConversationTitle derives a display title from a requested
// conversation title.
func BuildConversationTitle(prompt string) string {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return "New conversation"
	}

	const maxTitleLength = 120
	runes := []rune(trimmed)
	if len(runes) <= maxTitleLength {
		return trimmed
	}

	return string(runes[:maxTitleLength])
}
