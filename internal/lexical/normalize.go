package lexical

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, drops every rune that is not a letter, a digit or
// whitespace, and collapses runs of whitespace into single spaces.
//
// Word boundaries survive normalization so that callers can still tokenize
// the result; use [compact] for whole-string comparisons.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// Tokens splits a transcript chunk into normalized whitespace-separated
// tokens. Tokens that normalize to nothing are dropped.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}

// compact removes the spaces Normalize preserved.
func compact(normalized string) string {
	if !strings.Contains(normalized, " ") {
		return normalized
	}
	return strings.ReplaceAll(normalized, " ", "")
}

func runeLen(s string) int {
	return len([]rune(s))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// repeatsOnly reports whether s is one or more copies of the single rune
// string letter.
func repeatsOnly(s, letter string) bool {
	if s == "" || runeLen(letter) != 1 {
		return false
	}
	return strings.Trim(s, letter) == ""
}
