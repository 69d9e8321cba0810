package assessment

import (
	"fmt"

	"github.com/MrWong99/oralread/internal/level"
	"github.com/MrWong99/oralread/internal/lexical"
	"github.com/MrWong99/oralread/internal/testdef"
)

// wordListRunner administers a graded word list. The level is chosen from
// the highest fully correct filter sentence; the score against the level's
// pass mark decides the passage level.
type wordListRunner struct {
	c       *Controller
	id      string
	content testdef.WordList

	lvl   level.Level
	cfg   level.WordListConfig
	words []string
	idx   int
	tok   Token
	from  int
}

func newWordListRunner(c *Controller, id string, content testdef.WordList) *wordListRunner {
	return &wordListRunner{
		c:       c,
		id:      id,
		content: content,
		from:    len(c.evidence.words),
	}
}

func (r *wordListRunner) start() {
	r.lvl = level.FromSentences(r.c.highestSentence)
	r.c.wordLevel = r.lvl
	pool, ok := r.content.Words(r.lvl)
	if !ok {
		r.c.fail(fmt.Errorf("%w: stage %q has no words for level %s", ErrConfig, r.id, r.lvl))
		return
	}
	r.cfg = level.WordListConfigFor(r.lvl)
	r.words = testdef.Draw(r.c.rng, pool, r.cfg.Count)
	r.c.log.Info("word list selected", "stage", r.id, "level", r.lvl, "words", len(r.words), "pass", r.cfg.Pass)
	r.next()
}

func (r *wordListRunner) next() {
	if r.idx >= len(r.words) {
		r.evaluate()
		r.c.endStage()
		return
	}
	p := r.c.prompt(r.id, testdef.KindWordList, ModeWord, r.words[r.idx], helpWord, r.idx, len(r.words))
	p.Window = r.c.cfg.ListenTimeout
	r.c.pres.Present(p)
	r.tok = r.c.listen(r.c.cfg.ListenTimeout)
}

func (r *wordListRunner) handle(ev Event) {
	switch ev := ev.(type) {
	case Transcript:
		spoken := spokenText(ev.Text)
		if !ev.Final || spoken == "" {
			return
		}
		if !r.c.gate.Fire(r.tok) {
			return
		}
		target := r.words[r.idx]
		if !lexical.Match(spoken, target) {
			r.resolve(Incorrect, spoken)
			return
		}
		if lexical.IsRepetition(spoken, target) {
			spoken = target
		}
		r.resolve(Correct, spoken)
	case Timeout:
		// The window is over but a final transcript may still be in
		// flight; keep the gate live for the grace period.
		if !r.c.gate.Live(ev.Token) {
			return
		}
		r.c.timedOut(testdef.KindWordList)
		r.c.win.Close()
		r.c.sched.Schedule(r.c.cfg.GracePeriod, Grace{Token: ev.Token})
	case Grace:
		if !r.c.gate.Fire(ev.Token) {
			return
		}
		r.resolve(NoResponse, spokenNoResponse)
	}
}

func (r *wordListRunner) resolve(status Status, spoken string) {
	r.c.win.Close()
	r.c.evidence.addWord(WordAttempt{Target: r.words[r.idx], Spoken: spoken, Status: status})
	r.c.scored(testdef.KindWordList, status)
	r.c.log.Debug("word scored", "stage", r.id, "word", r.words[r.idx], "status", status)
	r.c.pres.Feedback(status == Correct)

	r.idx++
	r.c.after(r.c.cfg.FeedbackDelay, r.next)
}

func (r *wordListRunner) score() int {
	n := 0
	for _, a := range r.c.evidence.words[r.from:] {
		if a.Status == Correct {
			n++
		}
	}
	return n
}

func (r *wordListRunner) evaluate() {
	score := r.score()
	r.c.passageLevel = level.PassageLevel(r.lvl, score)
	r.c.log.Info("word list scored",
		"stage", r.id,
		"level", r.lvl,
		"score", score,
		"pass", r.cfg.Pass,
		"passage_level", r.c.passageLevel,
	)
}

func (r *wordListRunner) echo(text string) string { return text }

func (r *wordListRunner) position() (int, Mode) { return r.idx, ModeWord }

func (r *wordListRunner) summary() Summary {
	words := make([]WordAttempt, len(r.c.evidence.words)-r.from)
	copy(words, r.c.evidence.words[r.from:])
	return Summary{
		StageID: r.id,
		Kind:    testdef.KindWordList,
		Score:   r.score(),
		Total:   len(r.words),
		Level:   r.lvl.String(),
		Words:   words,
	}
}
