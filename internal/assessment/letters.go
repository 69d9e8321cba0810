package assessment

import (
	"github.com/MrWong99/oralread/internal/lexical"
	"github.com/MrWong99/oralread/internal/testdef"
)

// letterRunner administers a letter recognition stage. Each letter is asked
// for its name and then, unless the stage is name-only, for its sound.
type letterRunner struct {
	c        *Controller
	id       string
	items    []string
	nameOnly bool

	idx  int
	step Step
	tok  Token
	from int
}

func newLetterRunner(c *Controller, id string, content testdef.Letters) *letterRunner {
	return &letterRunner{
		c:        c,
		id:       id,
		items:    content.Items,
		nameOnly: c.cfg.nameOnly(id),
		step:     StepName,
		from:     len(c.evidence.letters),
	}
}

func (r *letterRunner) start() {
	r.next()
}

func (r *letterRunner) next() {
	if r.idx >= len(r.items) {
		r.c.endStage()
		return
	}
	mode, help := ModeLetterName, helpLetterName
	if r.step == StepSound {
		mode, help = ModeLetterSound, helpLetterSound
	}
	p := r.c.prompt(r.id, testdef.KindLetters, mode, r.items[r.idx], help, r.idx, len(r.items))
	p.Window = r.c.cfg.ListenTimeout
	r.c.pres.Present(p)
	r.tok = r.c.listen(r.c.cfg.ListenTimeout)
}

func (r *letterRunner) handle(ev Event) {
	switch ev := ev.(type) {
	case Transcript:
		spoken := spokenText(ev.Text)
		if !ev.Final || spoken == "" {
			return
		}
		if !r.c.gate.Fire(r.tok) {
			return
		}
		letter := r.items[r.idx]
		if lexical.Match(spoken, letter) {
			r.resolve(Correct, lexical.Canonical(spoken, letter))
			return
		}
		r.resolve(Incorrect, spoken)
	case Timeout:
		if !r.c.gate.Fire(ev.Token) {
			return
		}
		r.c.timedOut(testdef.KindLetters)
		r.resolve(NoResponse, spokenNoResponse)
	}
}

func (r *letterRunner) resolve(status Status, spoken string) {
	r.c.win.Close()
	r.c.evidence.addLetter(LetterAttempt{
		Letter: r.items[r.idx],
		Step:   r.step,
		Spoken: spoken,
		Status: status,
	})
	r.c.scored(testdef.KindLetters, status)
	r.c.log.Debug("letter scored", "stage", r.id, "letter", r.items[r.idx], "step", r.step, "status", status)
	r.c.pres.Feedback(status == Correct)

	if r.step == StepName && !r.nameOnly {
		r.step = StepSound
	} else {
		r.step = StepName
		r.idx++
	}
	r.c.after(r.c.cfg.FeedbackDelay, r.next)
}

func (r *letterRunner) echo(text string) string {
	if r.idx >= len(r.items) {
		return text
	}
	letter := r.items[r.idx]
	if lexical.Match(text, letter) {
		return lexical.Canonical(text, letter)
	}
	return text
}

func (r *letterRunner) position() (int, Mode) {
	if r.step == StepSound {
		return r.idx, ModeLetterSound
	}
	return r.idx, ModeLetterName
}

func (r *letterRunner) summary() Summary {
	rows, names, sounds := letterSummary(r.c.evidence.letters[r.from:])
	return Summary{
		StageID:    r.id,
		Kind:       testdef.KindLetters,
		Score:      names,
		Total:      len(r.items),
		SoundScore: sounds,
		Letters:    rows,
	}
}
