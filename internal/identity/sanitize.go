package identity

import "strings"

const (
	// Placeholder used when sanitization leaves nothing usable.
	Placeholder = "conversation"

	maxIDLen     = 50
	maxFolderLen = 30
)

// SanitizeID maps any identity string to a bounded, filesystem-safe token.
// Empty input maps to the fixed placeholder.
func SanitizeID(name string) string {
	return sanitize(name, maxIDLen)
}

// SanitizeFolderBase is the download-folder variant of the sanitizer: it
// additionally spells out a leading "+" and uses a tighter length cap.
func SanitizeFolderBase(name string) string {
	name = strings.ReplaceAll(name, "+", "plus_")
	return sanitize(name, maxFolderLen)
}

func sanitize(name string, maxLen int) string {
	s := reservedRe.ReplaceAllString(name, "_")
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = strings.TrimRight(s, ".")
	s = strings.TrimLeft(s, ".")
	s = multiUnderRe.ReplaceAllString(s, "_")
	s = nonASCIIRe.ReplaceAllString(s, "")
	s = strings.Trim(strings.TrimSpace(s), "_")

	if len(s) > maxLen {
		s = s[:maxLen]
	}
	if s == "" {
		return Placeholder
	}
	return s
}
