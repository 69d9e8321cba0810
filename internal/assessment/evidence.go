package assessment

import "slices"

// Status is the outcome of one scored attempt.
type Status string

const (
	Correct    Status = "correct"
	Incorrect  Status = "incorrect"
	NoResponse Status = "no_response"
)

// Step is the letter-stage sub-step.
type Step string

const (
	StepName  Step = "name"
	StepSound Step = "sound"
)

// spokenNoResponse is logged when a window closes without a usable utterance.
const spokenNoResponse = "(no response)"

// LetterAttempt is one letter name or sound attempt.
type LetterAttempt struct {
	Letter string `json:"letter"`
	Step   Step   `json:"step"`
	Spoken string `json:"spoken"`
	Status Status `json:"status"`
}

// SentenceAttempt is the aggregate outcome of one sentence reading.
type SentenceAttempt struct {
	SentenceID   int  `json:"sentence_id"`
	TotalWords   int  `json:"total_words"`
	CorrectWords int  `json:"correct_words"`
	Completed    bool `json:"completed"`
	ErrorsCount  int  `json:"errors_count"`
}

// WordAttempt is one word-list word.
type WordAttempt struct {
	Target string `json:"target"`
	Spoken string `json:"spoken"`
	Status Status `json:"status"`
}

// ComprehensionAttempt is one comprehension question.
type ComprehensionAttempt struct {
	Question string `json:"question"`
	Expected string `json:"expected"`
	Spoken   string `json:"spoken"`
	Status   Status `json:"status"`
}

// Logs is a snapshot of the four evidence logs.
type Logs struct {
	Letters       []LetterAttempt        `json:"letters"`
	Sentences     []SentenceAttempt      `json:"sentences"`
	Words         []WordAttempt          `json:"words"`
	Comprehension []ComprehensionAttempt `json:"comprehension"`
}

// Evidence is the append-only audit trail of an assessment. Entries are
// never modified or reordered once appended; accessors return copies.
type Evidence struct {
	letters       []LetterAttempt
	sentences     []SentenceAttempt
	words         []WordAttempt
	comprehension []ComprehensionAttempt
}

func (e *Evidence) addLetter(a LetterAttempt)               { e.letters = append(e.letters, a) }
func (e *Evidence) addSentence(a SentenceAttempt)           { e.sentences = append(e.sentences, a) }
func (e *Evidence) addWord(a WordAttempt)                   { e.words = append(e.words, a) }
func (e *Evidence) addComprehension(a ComprehensionAttempt) { e.comprehension = append(e.comprehension, a) }

// Letters returns a copy of the letter log.
func (e *Evidence) Letters() []LetterAttempt { return slices.Clone(e.letters) }

// Sentences returns a copy of the sentence log.
func (e *Evidence) Sentences() []SentenceAttempt { return slices.Clone(e.sentences) }

// Words returns a copy of the word log.
func (e *Evidence) Words() []WordAttempt { return slices.Clone(e.words) }

// Comprehension returns a copy of the comprehension log.
func (e *Evidence) Comprehension() []ComprehensionAttempt { return slices.Clone(e.comprehension) }

// Snapshot copies all four logs. Empty logs are returned as empty, not nil,
// slices so that they encode as [] rather than null.
func (e *Evidence) Snapshot() Logs {
	return Logs{
		Letters:       nonNil(e.letters),
		Sentences:     nonNil(e.sentences),
		Words:         nonNil(e.words),
		Comprehension: nonNil(e.comprehension),
	}
}

func nonNil[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}
