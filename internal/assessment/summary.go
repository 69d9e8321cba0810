package assessment

import (
	"github.com/MrWong99/oralread/internal/testdef"
)

// Summary is the section-complete report shown between stages.
type Summary struct {
	StageID string       `json:"stage_id"`
	Kind    testdef.Kind `json:"kind"`

	// Score and Total are names correct / letters for letter stages, words
	// correct / words for word lists, sentences completed / sentences for
	// sentence stages, and questions correct / questions for passages.
	Score int `json:"score"`
	Total int `json:"total"`

	// SoundScore is the number of correct letter sounds.
	SoundScore int `json:"sound_score,omitempty"`
	// Level is the word-list or passage level attempted.
	Level string `json:"level,omitempty"`
	// OralErrors is the passage error count.
	OralErrors int `json:"oral_errors,omitempty"`

	Letters []LetterRow   `json:"letters,omitempty"`
	Words   []WordAttempt `json:"words,omitempty"`

	// Message introduces the next stage; empty after the last stage.
	Message string `json:"message,omitempty"`
	// AwaitContinue is set when the controller waits for [Continue] before
	// entering the next stage.
	AwaitContinue bool `json:"await_continue,omitempty"`
}

// LetterRow is one letter in a letter-stage summary. Sound fields are empty
// for name-only stages.
type LetterRow struct {
	Letter     string `json:"letter"`
	Name       Status `json:"name"`
	HeardName  string `json:"heard_name,omitempty"`
	Sound      Status `json:"sound,omitempty"`
	HeardSound string `json:"heard_sound,omitempty"`
}

// nextMessage is the preparation message for the stage that follows.
func nextMessage(next testdef.Kind) string {
	switch next {
	case testdef.KindWordList:
		return "Thank you. Please Prepare to Call some Words."
	case testdef.KindSentences:
		return "Thank you. Please Prepare to Call some Sentences."
	case testdef.KindPassage:
		return "Thank you. Please Prepare to Read a Passage."
	default:
		return "Thank you. Proceeding to next section."
	}
}

func letterSummary(attempts []LetterAttempt) (rows []LetterRow, names, sounds int) {
	index := make(map[string]int)
	for _, a := range attempts {
		i, ok := index[a.Letter]
		if !ok || (a.Step == StepName && rows[i].Name != "") {
			rows = append(rows, LetterRow{Letter: a.Letter})
			i = len(rows) - 1
			index[a.Letter] = i
		}
		switch a.Step {
		case StepName:
			rows[i].Name, rows[i].HeardName = a.Status, a.Spoken
			if a.Status == Correct {
				names++
			}
		case StepSound:
			rows[i].Sound, rows[i].HeardSound = a.Status, a.Spoken
			if a.Status == Correct {
				sounds++
			}
		}
	}
	return rows, names, sounds
}
