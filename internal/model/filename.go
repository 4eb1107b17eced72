package model

import (
	"path/filepath"
	"regexp"
	"strings"
)

// MaxFileNameLen is the maximum filename length in bytes, extension included.
const MaxFileNameLen = 120

var (
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots = regexp.MustCompile(`\.+$`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// SanitizeFileName removes or replaces characters that are invalid in
// file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars) are replaced with underscore
//   - Trailing dots are removed (Windows limitation)
//   - Multiple whitespace is collapsed to single space
//   - Trailing whitespace is removed
//
// Example:
//
//	SanitizeFileName("clip: 1/2.mp4") // Returns "clip_ 1_2.mp4"
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.TrimRight(name, " ")
}

// TruncateFileName shortens a filename to at most MaxFileNameLen bytes,
// preserving the extension.
func TruncateFileName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	if len(stem)+len(ext) > MaxFileNameLen {
		available := MaxFileNameLen - len(ext)
		if available < 1 {
			available = 1
		}
		stem = stem[:available]
	}

	return stem + ext
}
