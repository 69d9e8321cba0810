// Package align reconciles a stream of spoken tokens against the ordered
// words of a sentence or passage.
//
// An [Attempt] holds the target words of one reading attempt together with
// a cursor at the last matched word. Each spoken token is compared against a
// small lookahead window after the cursor; a hit marks every pending word it
// jumped over as incorrect, a miss discards the token. The bounded window
// tolerates a reader skipping up to two words, or a recognizer inserting
// noise, without letting a single stray token desynchronize the rest of the
// attempt.
package align

import (
	"strings"

	"github.com/MrWong99/oralread/internal/lexical"
)

// Lookahead is the number of target words considered for each spoken token,
// starting at the word after the cursor.
const Lookahead = 3

// Status is the scoring state of one target word. The only transitions are
// Pending→Correct and Pending→Incorrect.
type Status int

const (
	Pending Status = iota
	Correct
	Incorrect
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return "unknown"
	}
}

// Word is one expected word of an attempt.
type Word struct {
	Original   string
	Normalized string
	Status     Status
}

// Attempt is the mutable alignment state of one sentence or passage reading.
// It is not safe for concurrent use.
type Attempt struct {
	words  []Word
	cursor int
}

// NewAttempt splits text on whitespace and builds a fresh attempt with every
// word pending. Tokens that are pure punctuation are dropped.
func NewAttempt(text string) *Attempt {
	fields := strings.Fields(text)
	words := make([]Word, 0, len(fields))
	for _, f := range fields {
		n := lexical.Normalize(f)
		if n == "" {
			continue
		}
		words = append(words, Word{Original: f, Normalized: n})
	}
	return &Attempt{words: words, cursor: -1}
}

// Consume aligns spoken tokens in order and reports whether any word changed
// status.
func (a *Attempt) Consume(tokens []string) bool {
	changed := false
	for _, tok := range tokens {
		if a.consumeOne(tok) {
			changed = true
		}
	}
	return changed
}

func (a *Attempt) consumeOne(tok string) bool {
	start := a.cursor + 1
	for off := 0; off < Lookahead; off++ {
		idx := start + off
		if idx >= len(a.words) {
			return false
		}
		if a.words[idx].Status != Pending {
			continue
		}
		if !lexical.Match(tok, a.words[idx].Normalized) {
			continue
		}
		for skipped := start; skipped < idx; skipped++ {
			if a.words[skipped].Status == Pending {
				a.words[skipped].Status = Incorrect
			}
		}
		a.words[idx].Status = Correct
		a.cursor = idx
		return true
	}
	return false
}

// Complete reports whether no word is pending. An attempt with no words is
// complete.
func (a *Attempt) Complete() bool {
	for _, w := range a.words {
		if w.Status == Pending {
			return false
		}
	}
	return true
}

// ExpirePending marks every pending word incorrect and returns how many were
// marked.
func (a *Attempt) ExpirePending() int {
	n := 0
	for i := range a.words {
		if a.words[i].Status == Pending {
			a.words[i].Status = Incorrect
			n++
		}
	}
	return n
}

// Tally counts words by status.
func (a *Attempt) Tally() (total, correct, incorrect, pending int) {
	total = len(a.words)
	for _, w := range a.words {
		switch w.Status {
		case Correct:
			correct++
		case Incorrect:
			incorrect++
		default:
			pending++
		}
	}
	return total, correct, incorrect, pending
}

// Errors returns the number of words not marked correct.
func (a *Attempt) Errors() int {
	total, correct, _, _ := a.Tally()
	return total - correct
}

// AllCorrect reports whether the attempt has words and every one is correct.
func (a *Attempt) AllCorrect() bool {
	total, correct, _, _ := a.Tally()
	return total > 0 && correct == total
}

// Cursor returns the index of the last matched word, or -1.
func (a *Attempt) Cursor() int { return a.cursor }

// Len returns the number of target words.
func (a *Attempt) Len() int { return len(a.words) }

// Words returns a copy of the target words.
func (a *Attempt) Words() []Word {
	out := make([]Word, len(a.words))
	copy(out, a.words)
	return out
}
