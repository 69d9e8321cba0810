// Package lexical decides whether a spoken utterance matches an expected
// target: a letter, a word, or a short phrase.
//
// Every function in this package is pure. The only state is the static
// number and homophone tables in tables.go.
package lexical

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

// PhraseThreshold is the fraction of target keywords that must be present in
// the spoken text for [MatchPhrase] to succeed.
const PhraseThreshold = 0.75

// fuzzyMinLen is the target length (in runes) above which a single edit is
// tolerated.
const fuzzyMinLen = 3

var parenthetical = regexp.MustCompile(`\(.*?\)`)

// Match reports whether spoken matches target. Comparison is case and
// punctuation insensitive. Rules are tried in order and the first success
// wins:
//
//  1. a spoken number ("100") equals the target's number word ("hundred");
//  2. exact match;
//  3. spoken contains target;
//  4. a one-letter target repeated ("eee" for "e");
//  5. a whole-word target repeated ("see see");
//  6. a letter target and spoken contains one of its homophones;
//  7. targets longer than three runes within edit distance 1;
//  8. multi-word targets through [MatchPhrase].
//
// The number rule is one-directional: "one" never matches the target "1".
func Match(spoken, target string) bool {
	s, t := Normalize(spoken), Normalize(target)
	if s == "" || t == "" {
		return false
	}
	sc, tc := compact(s), compact(t)

	if isDigits(sc) {
		for _, w := range numberWords[sc] {
			if w == t || compact(w) == tc {
				return true
			}
		}
	}

	if sc == tc || strings.Contains(sc, tc) {
		return true
	}

	if runeLen(tc) == 1 && repeatsOnly(sc, tc) {
		return true
	}

	if repeatedWord(s, tc) {
		return true
	}

	if homophoneOf(sc, tc) {
		return true
	}

	if runeLen(tc) > fuzzyMinLen && Distance(sc, tc) <= 1 {
		return true
	}

	if strings.Contains(t, " ") {
		return MatchPhrase(spoken, target)
	}
	return false
}

// MatchPhrase reports whether spoken covers enough of the keywords in
// target. Parenthetical hints and everything from the first " or " onward
// are removed from target before it is tokenized. A keyword counts as
// present when a spoken token equals it, or, for keywords longer than three
// runes, lies within edit distance 1 of it.
func MatchPhrase(spoken, target string) bool {
	keywords := Tokens(phraseKeywords(target))
	if len(keywords) == 0 {
		return false
	}
	heard := Tokens(spoken)

	present := 0
	for _, kw := range keywords {
		for _, tok := range heard {
			if tok == kw || (runeLen(kw) > fuzzyMinLen && Distance(tok, kw) <= 1) {
				present++
				break
			}
		}
	}
	return float64(present)/float64(len(keywords)) >= PhraseThreshold
}

// Distance returns the Levenshtein edit distance between a and b.
func Distance(a, b string) int {
	return matchr.Levenshtein(a, b)
}

// Canonical returns the uppercase letter when target is a single letter and
// spoken is recognisably that letter: a repetition, a homophone, or any
// utterance containing it. Otherwise spoken is returned unchanged.
func Canonical(spoken, target string) string {
	s, t := compact(Normalize(spoken)), compact(Normalize(target))
	if runeLen(t) != 1 || s == "" {
		return spoken
	}
	if strings.Contains(s, t) || homophoneOf(s, t) {
		return strings.ToUpper(t)
	}
	return spoken
}

// IsRepetition reports whether spoken consists of two or more tokens that
// each equal target.
func IsRepetition(spoken, target string) bool {
	return repeatedWord(Normalize(spoken), compact(Normalize(target)))
}

func repeatedWord(normalized, target string) bool {
	toks := strings.Fields(normalized)
	if len(toks) < 2 || target == "" {
		return false
	}
	for _, tok := range toks {
		if tok != target {
			return false
		}
	}
	return true
}

func homophoneOf(spokenCompact, target string) bool {
	for _, alias := range homophones[target] {
		if strings.Contains(spokenCompact, compact(alias)) {
			return true
		}
	}
	return false
}

func phraseKeywords(target string) string {
	cleaned := parenthetical.ReplaceAllString(target, "")
	if i := strings.Index(strings.ToLower(cleaned), " or "); i >= 0 {
		cleaned = cleaned[:i]
	}
	return cleaned
}
