// Package textutil holds small text helpers shared by the parser and the categorizer.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s and strips diacritics, so "DESCRIPCIÓN" and "descripcion" compare equal.
func Fold(s string) string {
	// transform.Chain keeps state; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

// ContainsFolded reports whether needle occurs in haystack ignoring case and accents.
func ContainsFolded(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// ContainsAnyFolded reports whether any needle occurs in haystack ignoring case and accents.
func ContainsAnyFolded(haystack string, needles ...string) bool {
	folded := Fold(haystack)
	for _, n := range needles {
		if strings.Contains(folded, Fold(n)) {
			return true
		}
	}
	return false
}

// NonEmptyLines splits text into trimmed, non-empty lines.
func NonEmptyLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// CollapseSpaces replaces runs of whitespace with a single space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
