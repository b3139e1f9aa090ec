package dams

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName applies NFKC and collapses internal whitespace.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// NormalizeID is NormalizeName for identifiers; accents are kept so ids
// round-trip to the source table.
func NormalizeID(s string) string {
	return NormalizeName(s)
}

// FoldKey lowercases s and strips diacritics, for matching header names
// such as "Longitud" or "Latitüde" written by different tools.
func FoldKey(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(NormalizeName(out))
}
