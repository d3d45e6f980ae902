package lexicon

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/russian"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold returns the case-folded, NFC-normalized form of s with "ё" unified to
// "е". It is the comparison form for every dictionary lookup.
func Fold(s string) string {
	// cases.Caser is stateful; build one per call so Fold stays goroutine-safe.
	folded := cases.Fold().String(norm.NFC.String(s))
	return strings.ReplaceAll(folded, "ё", "е")
}

// Key reduces a single word to its lookup key: the Russian snowball stem of
// its folded form. Tokens that are not purely alphabetic are only folded.
func Key(word string) string {
	folded := Fold(strings.TrimSpace(word))
	if folded == "" {
		return ""
	}
	for _, r := range folded {
		if !unicode.IsLetter(r) && r != '-' {
			return folded
		}
	}
	return russian.Stem(folded, true)
}
