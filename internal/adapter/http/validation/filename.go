package validation

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxFilenameLength caps download filenames at the common filesystem limit.
const maxFilenameLength = 255

// SanitizeFilename makes an upload-supplied name safe to echo back in a
// Content-Disposition header. Characters that can break the header or smuggle
// a path (quotes, slashes, backslash, colon, control characters) become
// underscores; Unicode passes through. Overlong names are truncated with the
// extension kept. Names with nothing left fall back to "file".
func SanitizeFilename(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '/', ':':
			return '_'
		}
		if r < 32 || r == 127 {
			return '_'
		}
		return r
	}, name)

	sanitized = strings.TrimSpace(sanitized)
	if strings.Trim(sanitized, "_") == "" {
		return "file"
	}

	if len(sanitized) > maxFilenameLength {
		sanitized = truncateName(sanitized)
	}
	return sanitized
}

// truncateName shortens a name to maxFilenameLength bytes without splitting a
// multi-byte rune, keeping the extension when one fits.
func truncateName(name string) string {
	ext := filepath.Ext(name)
	if len(ext) >= maxFilenameLength {
		ext = ""
	}

	base := name[:len(name)-len(ext)]
	limit := maxFilenameLength - len(ext)
	if len(base) > limit {
		for limit > 0 && !utf8.RuneStart(base[limit]) {
			limit--
		}
		base = base[:limit]
	}
	return base + ext
}

// ContentDisposition returns an attachment Content-Disposition header value
// carrying the sanitized filename.
func ContentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", SanitizeFilename(filename))
}
