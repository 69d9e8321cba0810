// Package testdef defines reading test definitions: the ordered stages a
// student is walked through and the content each stage draws from.
//
// Stage content is a closed set of variants ([Letters], [Sentences],
// [WordList], [Passage]). Code that dispatches on stages should switch on
// the concrete content type; [Stage.Kind] exists for logging and the wire
// format.
package testdef

import (
	"regexp"
	"strings"

	"github.com/MrWong99/oralread/internal/level"
)

// Kind is the wire name of a stage type.
type Kind string

const (
	KindLetters   Kind = "letter_recognition"
	KindSentences Kind = "sentence_reading"
	KindWordList  Kind = "word_list"
	KindPassage   Kind = "oral_reading"
)

// Test is a complete reading assessment definition.
type Test struct {
	ID     string
	Title  string
	Stages []Stage
}

// Stage is one phase of a test.
type Stage struct {
	ID      string
	Content Content
}

// Kind returns the stage type, or "" when no content is set.
func (s Stage) Kind() Kind {
	if s.Content == nil {
		return ""
	}
	return s.Content.Kind()
}

// Content is the typed payload of a stage. The set of implementations is
// closed to this package.
type Content interface {
	Kind() Kind
	clone() Content
}

// Letters is a letter naming (and optionally sounding) stage.
type Letters struct {
	Items []string
}

// Sentences is a sentence reading stage. Sentence order matters for level
// selection: the index of the highest fully correct sentence picks the
// word-list level.
type Sentences struct {
	Items []Sentence
}

// Sentence is one sentence to read aloud.
type Sentence struct {
	Text string
}

// WordList is a word calling stage with one word pool per level.
type WordList struct {
	Levels map[level.Level][]string
}

// Passage is an oral reading stage with one passage per level.
type Passage struct {
	Levels []PassageLevel
}

// PassageLevel is the passage and comprehension questions for one level.
type PassageLevel struct {
	Level     level.Level
	Title     string
	Text      string
	Questions []Question
}

// Question is one comprehension question. Answer holds one or more
// comma-separated accepted variants.
type Question struct {
	Question string
	Answer   string
}

func (Letters) Kind() Kind   { return KindLetters }
func (Sentences) Kind() Kind { return KindSentences }
func (WordList) Kind() Kind  { return KindWordList }
func (Passage) Kind() Kind   { return KindPassage }

func (c Letters) clone() Content {
	return Letters{Items: append([]string(nil), c.Items...)}
}

func (c Sentences) clone() Content {
	return Sentences{Items: append([]Sentence(nil), c.Items...)}
}

func (c WordList) clone() Content {
	levels := make(map[level.Level][]string, len(c.Levels))
	for l, words := range c.Levels {
		levels[l] = append([]string(nil), words...)
	}
	return WordList{Levels: levels}
}

func (c Passage) clone() Content {
	levels := make([]PassageLevel, len(c.Levels))
	for i, pl := range c.Levels {
		pl.Questions = append([]Question(nil), pl.Questions...)
		levels[i] = pl
	}
	return Passage{Levels: levels}
}

// Words returns the word pool for l.
func (c WordList) Words(l level.Level) ([]string, bool) {
	words, ok := c.Levels[l]
	if !ok || len(words) == 0 {
		return nil, false
	}
	return words, true
}

// ForLevel returns the first passage registered for l.
func (c Passage) ForLevel(l level.Level) (PassageLevel, bool) {
	for _, pl := range c.Levels {
		if pl.Level == l {
			return pl, true
		}
	}
	return PassageLevel{}, false
}

// answerHint matches scoring hints such as "(detail, inference)".
var answerHint = regexp.MustCompile(`\([^)]*\)`)

// Answers splits the accepted answer variants. Parenthesised hints are
// removed first and empty variants are dropped.
func (q Question) Answers() []string {
	parts := strings.Split(answerHint.ReplaceAllString(q.Answer, ""), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a deep copy of t.
func (t *Test) Clone() *Test {
	out := &Test{ID: t.ID, Title: t.Title, Stages: make([]Stage, len(t.Stages))}
	for i, s := range t.Stages {
		out.Stages[i] = Stage{ID: s.ID}
		if s.Content != nil {
			out.Stages[i].Content = s.Content.clone()
		}
	}
	return out
}
