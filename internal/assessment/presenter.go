package assessment

import (
	"time"

	"github.com/MrWong99/oralread/internal/align"
	"github.com/MrWong99/oralread/internal/testdef"
)

// Mode qualifies what a prompt asks for.
type Mode string

const (
	ModeLetterName  Mode = "name"
	ModeLetterSound Mode = "sound"
	ModeSentence    Mode = "sentence"
	ModeWord        Mode = "word"
	ModeReading     Mode = "reading"
	ModeQuestion    Mode = "question"
)

// Help strings shown with each prompt.
const (
	helpLetterName  = "Say the LETTER NAME."
	helpLetterSound = "Say the LETTER SOUND."
	helpSentence    = "Read the sentence aloud."
	helpWord        = "Read the word quickly!"
	helpReading     = "Read the story aloud. Press Done when you finish."
	helpQuestion    = "Answer out loud or press Skip."
)

var headers = map[testdef.Kind]string{
	testdef.KindLetters:   "READ THIS LETTER:",
	testdef.KindSentences: "READ THIS SENTENCE:",
	testdef.KindWordList:  "READ THIS WORD:",
	testdef.KindPassage:   "READ THIS PASSAGE:",
}

// Prompt is the content payload for one presented item.
type Prompt struct {
	StageID string       `json:"stage_id"`
	Kind    testdef.Kind `json:"kind"`
	Mode    Mode         `json:"mode"`
	Header  string       `json:"header"`
	// Text is the letter, sentence, word, passage or question shown.
	Text  string `json:"text"`
	Title string `json:"title,omitempty"`
	Help  string `json:"help"`
	// Index is the 0-based item position within the stage; Total is the
	// item count.
	Index int `json:"index"`
	Total int `json:"total"`
	// Window is the listening window length, 0 when unbounded.
	Window time.Duration `json:"-"`
}

// Presenter is the presentation boundary. The controller calls it
// synchronously from its event handler; implementations must not block.
type Presenter interface {
	// Present renders a new item.
	Present(p Prompt)
	// Words reports live per-word statuses while a sentence or passage is
	// being read.
	Words(words []align.Word)
	// Feedback signals whether the last scored attempt was correct.
	Feedback(correct bool)
	// Heard echoes what the recognizer heard.
	Heard(text string)
	// StageComplete reports the summary of a finished stage.
	StageComplete(s Summary)
	// Finished reports the final result.
	Finished(r Result)
	// Fail reports a fatal configuration error.
	Fail(err error)
}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) Present(Prompt)        {}
func (NopPresenter) Words([]align.Word)    {}
func (NopPresenter) Feedback(bool)         {}
func (NopPresenter) Heard(string)          {}
func (NopPresenter) StageComplete(Summary) {}
func (NopPresenter) Finished(Result)       {}
func (NopPresenter) Fail(error)            {}
