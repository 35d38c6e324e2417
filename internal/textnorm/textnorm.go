// Package textnorm holds small string normalizers shared by extraction and
// geocoding.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	titler = cases.Title(language.Norwegian)

	// ø and æ carry no combining mark, so NFD leaves them alone.
	letterFold = strings.NewReplacer("ø", "o", "æ", "ae", "ß", "ss")
)

// Space collapses runs of whitespace into a single space and trims the ends.
func Space(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Title lowercases s and upper-cases the first letter of every word, where
// words are separated by spaces or hyphens.
func Title(s string) string {
	s = Space(s)
	if s == "" {
		return ""
	}
	return titler.String(s)
}

// Slug converts a URL path segment into display text ("nord-fron" →
// "Nord-Fron").
func Slug(slug string) string {
	return Title(slug)
}

// Fold lowercases s, strips diacritics and trims it, so "Besøksadresse"
// and "besoksadresse" compare equal.
func Fold(s string) string {
	s = letterFold.Replace(strings.ToLower(Space(s)))
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		s,
	)
	return s
}
