package assessment

import (
	"fmt"
	"unicode/utf8"

	"github.com/MrWong99/oralread/internal/align"
	"github.com/MrWong99/oralread/internal/lexical"
	"github.com/MrWong99/oralread/internal/testdef"
)

// minInterimAnswer is the shortest interim transcript checked against a
// question's answers. Shorter interims are usually fragments.
const minInterimAnswer = 5

// passageRunner administers the oral reading passage and its comprehension
// questions. Reading has no time limit and ends on [DoneReading]; each
// question then gets its own window.
type passageRunner struct {
	c       *Controller
	id      string
	content testdef.Passage

	data    testdef.PassageLevel
	mode    Mode
	attempt *align.Attempt
	q       int
	tok     Token
	from    int
}

func newPassageRunner(c *Controller, id string, content testdef.Passage) *passageRunner {
	return &passageRunner{
		c:       c,
		id:      id,
		content: content,
		mode:    ModeReading,
		from:    len(c.evidence.comprehension),
	}
}

func (r *passageRunner) start() {
	lvl := r.c.passageLevel
	data, ok := r.content.ForLevel(lvl)
	if !ok {
		r.c.fail(fmt.Errorf("%w: stage %q has no passage for level %s", ErrConfig, r.id, lvl))
		return
	}
	r.data = data
	r.attempt = align.NewAttempt(data.Text)
	r.c.passage = r.attempt
	r.c.log.Info("passage selected", "stage", r.id, "level", lvl, "title", data.Title, "words", r.attempt.Len())

	p := r.c.prompt(r.id, testdef.KindPassage, ModeReading, data.Text, helpReading, 0, 1)
	p.Title = data.Title
	r.c.pres.Present(p)
	r.c.pres.Words(r.attempt.Words())
	r.tok = r.c.listen(0)
}

func (r *passageRunner) handle(ev Event) {
	if r.mode == ModeReading {
		r.handleReading(ev)
		return
	}
	switch ev := ev.(type) {
	case Transcript:
		r.answer(ev)
	case Timeout:
		if !r.c.gate.Fire(ev.Token) {
			return
		}
		r.c.timedOut(testdef.KindPassage)
		r.resolve(NoResponse, spokenNoResponse)
	case SkipQuestion:
		if !r.c.gate.Fire(r.tok) {
			return
		}
		r.skip()
	}
}

func (r *passageRunner) handleReading(ev Event) {
	switch ev := ev.(type) {
	case Transcript:
		if !r.c.gate.Live(r.tok) {
			return
		}
		if r.attempt.Consume(lexical.Tokens(ev.Text)) {
			r.c.pres.Words(r.attempt.Words())
		}
	case DoneReading:
		if !r.c.gate.Fire(r.tok) {
			return
		}
		r.c.win.Close()
		total, correct, _, _ := r.attempt.Tally()
		r.c.log.Info("passage read", "stage", r.id, "correct_words", correct, "total_words", total, "errors", r.attempt.Errors())
		r.mode = ModeQuestion
		r.nextQuestion()
	}
}

func (r *passageRunner) nextQuestion() {
	if r.q >= len(r.data.Questions) {
		r.c.endStage()
		return
	}
	q := r.data.Questions[r.q]
	p := r.c.prompt(r.id, testdef.KindPassage, ModeQuestion, q.Question, helpQuestion, r.q, len(r.data.Questions))
	p.Title = r.data.Title
	p.Window = r.c.cfg.QuestionTimeout
	r.c.pres.Present(p)
	r.tok = r.c.listen(r.c.cfg.QuestionTimeout)
}

func (r *passageRunner) answer(ev Transcript) {
	spoken := spokenText(ev.Text)
	if spoken == "" || (!ev.Final && utf8.RuneCountInString(spoken) < minInterimAnswer) {
		return
	}
	if !r.c.gate.Live(r.tok) {
		return
	}
	for _, a := range r.data.Questions[r.q].Answers() {
		if lexical.Match(spoken, a) {
			r.c.gate.Fire(r.tok)
			r.resolve(Correct, spoken)
			return
		}
	}
	if ev.Final {
		r.c.gate.Fire(r.tok)
		r.resolve(Incorrect, spoken)
	}
}

func (r *passageRunner) resolve(status Status, spoken string) {
	r.c.win.Close()
	q := r.data.Questions[r.q]
	r.c.evidence.addComprehension(ComprehensionAttempt{
		Question: q.Question,
		Expected: q.Answer,
		Spoken:   spoken,
		Status:   status,
	})
	r.c.scored(testdef.KindPassage, status)
	r.c.log.Debug("question scored", "stage", r.id, "question", r.q, "status", status)
	r.c.pres.Feedback(status == Correct)

	r.q++
	r.c.after(r.c.cfg.FeedbackDelay, r.nextQuestion)
}

// skip advances past the current question without logging an attempt, so
// skipped questions stay out of the comprehension percentage.
func (r *passageRunner) skip() {
	r.c.win.Close()
	r.c.scored(testdef.KindPassage, Incorrect)
	r.c.log.Debug("question skipped", "stage", r.id, "question", r.q)
	r.c.pres.Feedback(false)

	r.q++
	r.nextQuestion()
}

func (r *passageRunner) echo(text string) string { return text }

func (r *passageRunner) position() (int, Mode) {
	if r.mode == ModeReading {
		return 0, ModeReading
	}
	return r.q, ModeQuestion
}

func (r *passageRunner) summary() Summary {
	correct := 0
	for _, a := range r.c.evidence.comprehension[r.from:] {
		if a.Status == Correct {
			correct++
		}
	}
	s := Summary{
		StageID: r.id,
		Kind:    testdef.KindPassage,
		Score:   correct,
		Total:   len(r.data.Questions),
		Level:   r.data.Level.String(),
	}
	if r.attempt != nil {
		s.OralErrors = r.attempt.Errors()
	}
	return s
}
