// Package textnorm folds and cleans French free text for comparisons.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Unaccent removes diacritics: "Étang-Salé" → "Etang-Sale".
func Unaccent(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold lower-cases, removes diacritics and collapses whitespace.
func Fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(Unaccent(s))), " ")
}

// EqualFold compares two strings ignoring case, accents and spacing.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// ContainsFold reports whether needle occurs in haystack ignoring case,
// accents and spacing.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

var nameReplacer = strings.NewReplacer(
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
	"«", "",
	"»", "",
	`"`, "",
	"’", "'",
)

// CleanName normalizes an establishment or street name coming from a
// dataset: line breaks become spaces, French quotes and double quotes are
// dropped, typographic apostrophes are straightened and spaces collapsed.
func CleanName(s string) string {
	return strings.Join(strings.Fields(nameReplacer.Replace(s)), " ")
}

// CleanPhone removes regular and non-breaking spaces from a phone number.
func CleanPhone(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
