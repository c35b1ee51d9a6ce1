package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	foldCaser  = cases.Fold()
	stripMarks = runes.Remove(runes.In(unicode.Mn))
)

// Fold removes diacritics and case so "Crème Brûlée" compares as "creme brulee".
func Fold(text string) string {
	t := transform.Chain(norm.NFD, stripMarks, norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return foldCaser.String(folded)
}

// Slug converts text into a lowercase, dash-separated token safe for file
// names and URLs. It returns fallback when nothing usable remains.
func Slug(text string, maxLen int, fallback string) string {
	var b strings.Builder
	dash := false
	for _, r := range Fold(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if maxLen > 0 && len(out) > maxLen {
		out = strings.TrimRight(out[:maxLen], "-")
	}
	if out == "" {
		return fallback
	}
	return out
}
