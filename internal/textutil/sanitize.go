package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxFileNameLength caps sanitized titles.
const MaxFileNameLength = 200

// fileNameReplacer replaces filesystem-unsafe characters with dashes.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "-",
	"\"", "-",
	"<", "-",
	">", "-",
	"|", "-",
)

// FoldASCII decomposes s and strips combining marks.
func FoldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// SanitizeFileName turns a video title into a safe file stem. Path separators
// and reserved characters become dashes, and anything outside letters, digits,
// dot, dash, underscore, and space also becomes a dash. The result is trimmed
// and truncated to MaxFileNameLength bytes.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(FoldASCII(name))
	if name == "" {
		return ""
	}
	name = fileNameReplacer.Replace(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isSafeRune(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('-')
	}
	out := b.String()
	if len(out) > MaxFileNameLength {
		out = out[:MaxFileNameLength]
	}
	out = strings.TrimSpace(out)
	// Leading dots would hide the file or form "." / ".." path segments.
	out = strings.TrimLeft(out, ".")
	return out
}

func isSafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '_', r == ' ':
		return true
	default:
		return false
	}
}
