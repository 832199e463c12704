package identity

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// SafeName converts a display name into a token usable in file names:
// diacritics stripped, anything outside [A-Za-z0-9._-] collapsed to "_".
func SafeName(name string) string {
	name = RemoveDiacritics(name)
	name = unsafeChars.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}
