package assessment

import (
	"github.com/MrWong99/oralread/internal/align"
	"github.com/MrWong99/oralread/internal/lexical"
	"github.com/MrWong99/oralread/internal/testdef"
)

// sentenceRunner administers a sentence reading stage. Interim and final
// transcripts both feed the aligner; a sentence ends when no word is pending
// or when its window elapses.
type sentenceRunner struct {
	c     *Controller
	id    string
	items []testdef.Sentence

	idx     int
	attempt *align.Attempt
	tok     Token
	from    int
}

func newSentenceRunner(c *Controller, id string, content testdef.Sentences) *sentenceRunner {
	return &sentenceRunner{
		c:     c,
		id:    id,
		items: content.Items,
		from:  len(c.evidence.sentences),
	}
}

func (r *sentenceRunner) start() {
	r.next()
}

func (r *sentenceRunner) next() {
	if r.idx >= len(r.items) {
		r.c.endStage()
		return
	}
	text := r.items[r.idx].Text
	r.attempt = align.NewAttempt(text)

	p := r.c.prompt(r.id, testdef.KindSentences, ModeSentence, text, helpSentence, r.idx, len(r.items))
	p.Window = r.c.cfg.SentenceTimeout
	r.c.pres.Present(p)
	r.c.pres.Words(r.attempt.Words())
	r.tok = r.c.listen(r.c.cfg.SentenceTimeout)

	if r.attempt.Complete() && r.c.gate.Fire(r.tok) {
		r.resolve()
	}
}

func (r *sentenceRunner) handle(ev Event) {
	switch ev := ev.(type) {
	case Transcript:
		if !r.c.gate.Live(r.tok) {
			return
		}
		if r.attempt.Consume(lexical.Tokens(ev.Text)) {
			r.c.pres.Words(r.attempt.Words())
		}
		if r.attempt.Complete() && r.c.gate.Fire(r.tok) {
			r.resolve()
		}
	case Timeout:
		if !r.c.gate.Fire(ev.Token) {
			return
		}
		r.c.timedOut(testdef.KindSentences)
		if r.attempt.ExpirePending() > 0 {
			r.c.pres.Words(r.attempt.Words())
		}
		r.resolve()
	}
}

func (r *sentenceRunner) resolve() {
	r.c.win.Close()
	total, correct, _, _ := r.attempt.Tally()
	completed := r.attempt.AllCorrect()
	r.c.evidence.addSentence(SentenceAttempt{
		SentenceID:   r.idx,
		TotalWords:   total,
		CorrectWords: correct,
		Completed:    completed,
		ErrorsCount:  total - correct,
	})
	status := Incorrect
	if completed {
		status = Correct
		if r.idx > r.c.highestSentence {
			r.c.highestSentence = r.idx
		}
	}
	r.c.scored(testdef.KindSentences, status)
	r.c.log.Debug("sentence scored", "stage", r.id, "sentence", r.idx, "correct_words", correct, "total_words", total)
	r.c.pres.Feedback(completed)

	r.idx++
	r.c.after(r.c.cfg.FeedbackDelay, r.next)
}

func (r *sentenceRunner) echo(text string) string { return text }

func (r *sentenceRunner) position() (int, Mode) { return r.idx, ModeSentence }

func (r *sentenceRunner) summary() Summary {
	done := 0
	for _, a := range r.c.evidence.sentences[r.from:] {
		if a.Completed {
			done++
		}
	}
	return Summary{
		StageID: r.id,
		Kind:    testdef.KindSentences,
		Score:   done,
		Total:   len(r.items),
	}
}
