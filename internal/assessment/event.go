package assessment

// Event is anything the controller reacts to. Events are applied one at a
// time, in delivery order, by whoever owns the [Controller] (normally a
// [Session]).
type Event interface {
	isEvent()
}

// Transcript is a recognizer hypothesis for the current utterance.
type Transcript struct {
	Text  string
	Final bool
}

// Timeout reports that the listening window armed with Token elapsed.
type Timeout struct {
	Token Token
}

// Grace reports that the post-timeout grace period armed with Token elapsed.
type Grace struct {
	Token Token
}

// DoneReading is the student's "finished reading" signal in a passage stage.
type DoneReading struct{}

// SkipQuestion is the student's "skip" signal for a comprehension question.
type SkipQuestion struct{}

// Continue acknowledges a stage summary when stage confirmation is enabled.
type Continue struct{}

// RecognizerEnded reports that the recognizer finished a recognition cycle
// (for browsers, the Web Speech "end" event).
type RecognizerEnded struct{}

// deferred runs a continuation registered with [Controller.after].
type deferred struct {
	id uint64
}

func (Transcript) isEvent()      {}
func (Timeout) isEvent()         {}
func (Grace) isEvent()           {}
func (DoneReading) isEvent()     {}
func (SkipQuestion) isEvent()    {}
func (Continue) isEvent()        {}
func (RecognizerEnded) isEvent() {}
func (deferred) isEvent()        {}

// Final is shorthand for a final [Transcript].
func Final(text string) Transcript { return Transcript{Text: text, Final: true} }

// Interim is shorthand for an interim [Transcript].
func Interim(text string) Transcript { return Transcript{Text: text} }
