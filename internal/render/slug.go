package render

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer strips diacritics: NFKD decomposition, drop combining
// marks, recompose. "Kapitel Über Flüsse" slugs to "kapitel-uber-flusse".
var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug converts heading text into a URL-safe anchor fragment.
func Slug(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '\'', r == '’':
			// Apostrophes vanish without splitting the word.
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}

// slugger allocates unique anchors across one document. Collisions get a
// numeric suffix in encounter order, so allocation is deterministic.
type slugger struct {
	used map[string]bool
}

func newSlugger() *slugger {
	return &slugger{used: make(map[string]bool)}
}

// anchor returns a unique anchor for the heading text.
func (s *slugger) anchor(text string) string {
	base := Slug(text)
	if base == "" {
		base = "section"
	}
	candidate := base
	for i := 1; s.used[candidate]; i++ {
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	s.used[candidate] = true
	return candidate
}
