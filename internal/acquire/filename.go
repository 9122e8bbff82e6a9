// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import "strings"

const (
	maxTitleLen  = 50
	maxAuthorLen = 30
)

// GenerateFilename builds "<title>_<author><ext>" from sanitized hints.
// Characters outside [A-Za-z0-9_-] become underscores, runs of underscores
// collapse, and a part that sanitizes to nothing becomes "unknown".
func GenerateFilename(title, author, ext string) string {
	// An unusable title also falls back to "unknown" so a name is never "_<author>".
	t := cleanPart(title, maxTitleLen)
	a := cleanPart(author, maxAuthorLen)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return t + "_" + a + ext
}

func cleanPart(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	cleaned := b.String()
	for strings.Contains(cleaned, "__") {
		cleaned = strings.ReplaceAll(cleaned, "__", "_")
	}
	cleaned = strings.Trim(cleaned, "_")
	if len(cleaned) > maxLen {
		cleaned = strings.Trim(cleaned[:maxLen], "_")
	}
	if cleaned == "" {
		return "unknown"
	}
	return cleaned
}
