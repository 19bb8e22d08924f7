package text

import (
	"regexp"
	"strings"
)

// Extractor is a pure function that looks for one value in raw invoice text.
type Extractor[T any] func(text string) (T, bool)

// FirstMatch tries extractors in order and returns the first hit.
func FirstMatch[T any](extractors ...Extractor[T]) Extractor[T] {
	return func(text string) (T, bool) {
		for _, e := range extractors {
			if v, ok := e(text); ok {
				return v, true
			}
		}
		var zero T
		return zero, false
	}
}

// Pattern captures the first group of re, trimmed. Empty captures do not match.
func Pattern(re *regexp.Regexp) Extractor[string] {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			return "", false
		}
		v := strings.TrimSpace(m[1])
		return v, v != ""
	}
}

// Patterns is FirstMatch over Pattern(re) for each expression.
func Patterns(res ...*regexp.Regexp) Extractor[string] {
	extractors := make([]Extractor[string], len(res))
	for i, re := range res {
		extractors[i] = Pattern(re)
	}
	return FirstMatch(extractors...)
}

// Map converts an extractor's value; a failed conversion counts as no match.
func Map[T, U any](e Extractor[T], fn func(T) (U, bool)) Extractor[U] {
	return func(text string) (U, bool) {
		v, ok := e(text)
		if !ok {
			var zero U
			return zero, false
		}
		return fn(v)
	}
}

// MappedPatterns converts each pattern's capture with fn. A capture that fails
// conversion falls through to the next pattern.
func MappedPatterns[T any](fn func(string) (T, bool), res ...*regexp.Regexp) Extractor[T] {
	extractors := make([]Extractor[T], len(res))
	for i, re := range res {
		extractors[i] = Map(Pattern(re), fn)
	}
	return FirstMatch(extractors...)
}

// OrDefault runs e and returns def when it does not match.
func OrDefault[T any](e Extractor[T], text string, def T) T {
	if v, ok := e(text); ok {
		return v
	}
	return def
}
