package answer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize reduces a spoken or typed answer to a comparable form: accents and case are
// folded, punctuation and symbols are dropped, runs of whitespace become a single space.
func Normalize(s string) string {
	// Transformers and casers are stateful, build them per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = cases.Fold().String(folded)

	var (
		b     strings.Builder
		space bool
	)
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}

	return b.String()
}

// Equal reports whether two answers match after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
