package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that carry no combining mark and so survive NFD decomposition.
var baseLetters = strings.NewReplacer("đ", "d", "ı", "i", "ø", "o", "ß", "ss")

// Generate creates a URL-friendly slug from the given name. Diacritics are
// stripped by decomposing to NFD and dropping combining marks, which covers
// Vietnamese tone marks as well as Turkish and Latin accents.
//
// Examples:
//   - "Tên hiển thị" → "ten-hien-thi"
//   - "Đồ Uống Có Ga" → "do-uong-co-ga"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	s := baseLetters.Replace(strings.ToLower(strings.TrimSpace(name)))

	// Transformers carry state, so each call builds its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}

	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
