package assessment_test

import (
	"math/rand/v2"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/oralread/internal/align"
	"github.com/MrWong99/oralread/internal/assessment"
	"github.com/MrWong99/oralread/internal/assessment/mock"
	"github.com/MrWong99/oralread/internal/level"
	"github.com/MrWong99/oralread/internal/testdef"
)

type harness struct {
	t     *testing.T
	cfg   assessment.Config
	c     *assessment.Controller
	pres  *mock.Presenter
	rec   *mock.Recognizer
	sched *assessment.ManualScheduler
}

func testConfig(def *testdef.Test) assessment.Config {
	cfg := assessment.DefaultConfig()
	cfg.OrderedStages = nil
	for _, s := range def.Stages {
		cfg.OrderedStages = append(cfg.OrderedStages, s.ID)
	}
	return cfg
}

func TestDefaultConfig_Windows(t *testing.T) {
	cfg := assessment.DefaultConfig()
	assert.Equal(t, 4*time.Second, cfg.ListenTimeout)
	for name, d := range map[string]time.Duration{
		"question": cfg.QuestionTimeout,
		"sentence": cfg.SentenceTimeout,
	} {
		assert.LessOrEqual(t, d, 15*time.Second, name)
		assert.Greater(t, d, cfg.ListenTimeout, name)
	}
}

func newHarness(t *testing.T, def *testdef.Test, cfg assessment.Config) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		cfg:   cfg,
		pres:  &mock.Presenter{},
		rec:   &mock.Recognizer{},
		sched: assessment.NewManualScheduler(),
	}
	h.c = assessment.NewController(def, h.pres, h.rec, h.sched,
		assessment.WithConfig(cfg),
		assessment.WithRand(rand.New(rand.NewPCG(1, 2))),
		assessment.WithUser("student-1"),
	)
	h.c.Start()
	return h
}

func (h *harness) say(text string) { h.c.Handle(assessment.Final(text)) }

func (h *harness) murmur(text string) { h.c.Handle(assessment.Interim(text)) }

// settle lets the feedback delay elapse so the next item is presented.
func (h *harness) settle() { h.sched.Advance(h.c, h.cfg.FeedbackDelay) }

func (h *harness) wait(d time.Duration) { h.sched.Advance(h.c, d) }

func single(id string, content testdef.Content) *testdef.Test {
	return &testdef.Test{ID: "t1", Stages: []testdef.Stage{{ID: id, Content: content}}}
}

func TestLetters_NameOnly(t *testing.T) {
	def := single("letters_common", testdef.Letters{Items: []string{"a", "b"}})
	h := newHarness(t, def, testConfig(def))

	p := h.pres.LastPrompt()
	assert.Equal(t, "a", p.Text)
	assert.Equal(t, assessment.ModeLetterName, p.Mode)
	assert.Equal(t, "READ THIS LETTER:", p.Header)
	assert.Equal(t, "Say the LETTER NAME.", p.Help)
	assert.Equal(t, assessment.Listening, h.c.State().Listening)

	h.say("A.")
	assert.Equal(t, []bool{true}, h.pres.Feedbacks)
	assert.Equal(t, assessment.Stopping, h.c.State().Listening, "window closed after resolution")

	h.settle()
	assert.Equal(t, "b", h.pres.LastPrompt().Text)
	assert.Equal(t, assessment.ModeLetterName, h.pres.LastPrompt().Mode, "name-only stage skips sounds")

	h.say("see")
	h.settle()

	require.True(t, h.c.Finished())
	logs := h.c.Evidence()
	assert.Equal(t, []assessment.LetterAttempt{
		{Letter: "a", Step: assessment.StepName, Spoken: "A", Status: assessment.Correct},
		{Letter: "b", Step: assessment.StepName, Spoken: "see", Status: assessment.Incorrect},
	}, logs.Letters)

	require.Len(t, h.pres.Summaries, 1)
	s := h.pres.Summaries[0]
	assert.Equal(t, 1, s.Score)
	assert.Equal(t, 2, s.Total)
	assert.Empty(t, s.Message, "no next stage")
}

func TestLetters_NameThenSoundWithTimeout(t *testing.T) {
	def := single("letters_all", testdef.Letters{Items: []string{"m"}})
	h := newHarness(t, def, testConfig(def))

	h.say("em")
	h.settle()
	p := h.pres.LastPrompt()
	assert.Equal(t, "m", p.Text)
	assert.Equal(t, assessment.ModeLetterSound, p.Mode)
	assert.Equal(t, "Say the LETTER SOUND.", p.Help)

	h.wait(h.cfg.ListenTimeout)
	assert.Equal(t, []bool{true, false}, h.pres.Feedbacks)
	h.settle()

	require.True(t, h.c.Finished())
	assert.Equal(t, []assessment.LetterAttempt{
		{Letter: "m", Step: assessment.StepName, Spoken: "M", Status: assessment.Correct},
		{Letter: "m", Step: assessment.StepSound, Spoken: "(no response)", Status: assessment.NoResponse},
	}, h.c.Evidence().Letters)

	s := h.pres.Summaries[0]
	assert.Equal(t, 1, s.Score)
	assert.Equal(t, 0, s.SoundScore)
	require.Len(t, s.Letters, 1)
	assert.Equal(t, assessment.NoResponse, s.Letters[0].Sound)
}

func TestLetters_TimeoutThenLateMatchIsIgnored(t *testing.T) {
	def := single("letters_all", testdef.Letters{Items: []string{"a", "b"}})
	h := newHarness(t, def, testConfig(def))

	h.wait(h.cfg.ListenTimeout)
	h.say("a")
	h.say("a")

	logs := h.c.Evidence()
	require.Len(t, logs.Letters, 1)
	assert.Equal(t, assessment.NoResponse, logs.Letters[0].Status)
	assert.Len(t, h.pres.Feedbacks, 1)
}

func TestLetters_InterimIsEchoedButNotScored(t *testing.T) {
	def := single("letters_all", testdef.Letters{Items: []string{"c"}})
	h := newHarness(t, def, testConfig(def))

	h.murmur("see?")
	assert.Empty(t, h.c.Evidence().Letters)
	assert.Equal(t, []string{"C"}, h.pres.HeardTexts())

	h.murmur("  ")
	assert.Len(t, h.pres.HeardTexts(), 1, "blank transcripts are not echoed")
}

func TestLetters_StaleTimeoutDoesNotResolveNextItem(t *testing.T) {
	def := single("letters_common", testdef.Letters{Items: []string{"a", "b"}})
	h := newHarness(t, def, testConfig(def))

	stale := h.c.State()
	h.say("a")
	h.settle()
	// A timeout carrying an earlier token arrives late.
	h.c.Handle(assessment.Timeout{Token: 1})
	assert.Len(t, h.c.Evidence().Letters, 1)
	assert.Equal(t, 0, stale.Item)
	assert.Equal(t, 1, h.c.State().Item)
}

func TestSentences_CompleteAndTimeout(t *testing.T) {
	def := single("sentence_filter", testdef.Sentences{Items: []testdef.Sentence{
		{Text: "The cat sat."},
		{Text: "A big dog ran."},
	}})
	h := newHarness(t, def, testConfig(def))

	p := h.pres.LastPrompt()
	assert.Equal(t, "The cat sat.", p.Text)
	assert.Equal(t, "READ THIS SENTENCE:", p.Header)
	require.Len(t, h.pres.LastWords(), 3)

	h.murmur("the")
	h.murmur("the cat")
	words := h.pres.LastWords()
	assert.Equal(t, align.Correct, words[0].Status)
	assert.Equal(t, align.Correct, words[1].Status)
	assert.Equal(t, align.Pending, words[2].Status)

	h.say("the cat sat")
	assert.Equal(t, []bool{true}, h.pres.Feedbacks)
	h.settle()

	assert.Equal(t, "A big dog ran.", h.pres.LastPrompt().Text)
	h.say("a big")
	h.wait(h.cfg.SentenceTimeout)
	assert.Equal(t, []bool{true, false}, h.pres.Feedbacks)
	for _, w := range h.pres.LastWords()[2:] {
		assert.Equal(t, align.Incorrect, w.Status)
	}
	h.settle()

	require.True(t, h.c.Finished())
	assert.Equal(t, []assessment.SentenceAttempt{
		{SentenceID: 0, TotalWords: 3, CorrectWords: 3, Completed: true, ErrorsCount: 0},
		{SentenceID: 1, TotalWords: 4, CorrectWords: 2, Completed: false, ErrorsCount: 2},
	}, h.c.Evidence().Sentences)
	assert.Equal(t, 0, h.c.State().HighestSentence)
	assert.Equal(t, 1, h.pres.Summaries[0].Score)
}

func TestSentences_TimeoutThenLateFinal(t *testing.T) {
	def := single("sentence_filter", testdef.Sentences{Items: []testdef.Sentence{
		{Text: "The cat sat."},
		{Text: "A big dog ran."},
	}})
	h := newHarness(t, def, testConfig(def))

	h.murmur("the")
	h.wait(h.cfg.SentenceTimeout)
	require.Len(t, h.c.Evidence().Sentences, 1)

	h.murmur("cat sat")
	h.say("the cat sat")
	assert.Len(t, h.c.Evidence().Sentences, 1, "late transcripts after timeout are ignored")
	assert.Equal(t, []bool{false}, h.pres.Feedbacks)
	for _, w := range h.pres.LastWords()[1:] {
		assert.Equal(t, align.Incorrect, w.Status)
	}
	h.settle()

	assert.Equal(t, "A big dog ran.", h.pres.LastPrompt().Text)
	h.say("a big dog ran")
	h.settle()

	require.True(t, h.c.Finished())
	assert.Equal(t, []assessment.SentenceAttempt{
		{SentenceID: 0, TotalWords: 3, CorrectWords: 1, Completed: false, ErrorsCount: 2},
		{SentenceID: 1, TotalWords: 4, CorrectWords: 4, Completed: true, ErrorsCount: 0},
	}, h.c.Evidence().Sentences)
	assert.Equal(t, []bool{false, true}, h.pres.Feedbacks)
	assert.Equal(t, 1, h.c.State().HighestSentence)
}

func TestSentences_SkippedWordFailsSentence(t *testing.T) {
	def := single("sentence_filter", testdef.Sentences{Items: []testdef.Sentence{{Text: "We like to play."}}})
	h := newHarness(t, def, testConfig(def))

	h.say("we to play")
	h.settle()

	require.True(t, h.c.Finished())
	got := h.c.Evidence().Sentences
	require.Len(t, got, 1)
	assert.False(t, got[0].Completed)
	assert.Equal(t, 1, got[0].ErrorsCount)
	assert.Equal(t, -1, h.c.State().HighestSentence)
}

func wordListTest(levels map[level.Level][]string) *testdef.Test {
	return single("sight_words", testdef.WordList{Levels: levels})
}

func TestWordList_GracePeriodAcceptsLateFinal(t *testing.T) {
	def := wordListTest(map[level.Level][]string{level.PrePrimer: {"cat"}})
	h := newHarness(t, def, testConfig(def))

	p := h.pres.LastPrompt()
	assert.Equal(t, "cat", p.Text)
	assert.Equal(t, "READ THIS WORD:", p.Header)

	h.wait(h.cfg.ListenTimeout)
	assert.Empty(t, h.c.Evidence().Words, "still inside the grace period")
	assert.Equal(t, assessment.Stopping, h.c.State().Listening)

	h.say("cat cat")
	h.wait(h.cfg.GracePeriod)
	h.settle()

	require.True(t, h.c.Finished())
	assert.Equal(t, []assessment.WordAttempt{{Target: "cat", Spoken: "cat", Status: assessment.Correct}}, h.c.Evidence().Words)
	assert.Equal(t, level.PrePrimer, h.c.State().WordListLevel)
}

func TestWordList_GraceExpiresAsNoResponse(t *testing.T) {
	def := wordListTest(map[level.Level][]string{level.PrePrimer: {"go"}})
	h := newHarness(t, def, testConfig(def))

	h.wait(h.cfg.ListenTimeout + h.cfg.GracePeriod)
	h.say("go")
	h.settle()

	require.True(t, h.c.Finished())
	assert.Equal(t, []assessment.WordAttempt{{Target: "go", Spoken: "(no response)", Status: assessment.NoResponse}}, h.c.Evidence().Words)
}

func TestWordList_MissingLevelFails(t *testing.T) {
	def := wordListTest(map[level.Level][]string{level.Level1: {"after"}})
	h := newHarness(t, def, testConfig(def))

	require.Error(t, h.c.Err())
	assert.ErrorIs(t, h.c.Err(), assessment.ErrConfig)
	assert.Len(t, h.pres.Errors, 1)
	assert.True(t, h.c.Done())
	assert.False(t, h.c.Finished())

	h.say("after")
	assert.Empty(t, h.c.Evidence().Words)
}

func passageTest() *testdef.Test {
	return single("passages", testdef.Passage{Levels: []testdef.PassageLevel{{
		Level: level.PrePrimer,
		Title: "The Cat",
		Text:  "I see a cat. The cat is big. The cat can run.",
		Questions: []testdef.Question{
			{Question: "What did I see?", Answer: "cat, a cat"},
			{Question: "What can the cat do?", Answer: "run"},
			{Question: "Is the cat big?", Answer: "yes"},
		},
	}}})
}

func TestPassage_ReadingAndQuestions(t *testing.T) {
	def := passageTest()
	h := newHarness(t, def, testConfig(def))

	p := h.pres.LastPrompt()
	assert.Equal(t, assessment.ModeReading, p.Mode)
	assert.Equal(t, "The Cat", p.Title)
	assert.Zero(t, p.Window)

	h.murmur("I see a")
	h.wait(time.Hour)
	assert.Equal(t, assessment.ModeReading, h.c.State().Mode, "reading has no time limit")

	h.c.Handle(assessment.SkipQuestion{})
	assert.Empty(t, h.c.Evidence().Comprehension, "skip is ignored while reading")

	h.c.Handle(assessment.DoneReading{})
	p = h.pres.LastPrompt()
	assert.Equal(t, assessment.ModeQuestion, p.Mode)
	assert.Equal(t, "What did I see?", p.Text)

	h.murmur("cat")
	assert.Empty(t, h.c.Evidence().Comprehension, "short interims are ignored")
	h.murmur("a cat!")
	require.Len(t, h.c.Evidence().Comprehension, 1)
	h.say("a cat")
	assert.Len(t, h.c.Evidence().Comprehension, 1, "late final ignored")
	h.settle()

	assert.Equal(t, "What can the cat do?", h.pres.LastPrompt().Text)
	h.c.Handle(assessment.SkipQuestion{})
	assert.Equal(t, "Is the cat big?", h.pres.LastPrompt().Text, "skip advances without feedback delay")

	h.wait(h.cfg.QuestionTimeout)
	h.settle()

	require.True(t, h.c.Finished())
	assert.Equal(t, []assessment.ComprehensionAttempt{
		{Question: "What did I see?", Expected: "cat, a cat", Spoken: "a cat", Status: assessment.Correct},
		{Question: "Is the cat big?", Expected: "yes", Spoken: "(no response)", Status: assessment.NoResponse},
	}, h.c.Evidence().Comprehension)
	assert.Equal(t, []bool{true, false, false}, h.pres.Feedbacks)

	res, ok := h.c.Result()
	require.True(t, ok)
	assert.Equal(t, 9, res.OralErrors)
	assert.Equal(t, level.Frustrational, res.OralClassification)
	assert.Equal(t, 50, res.ComprehensionPercent)
	assert.Equal(t, level.PrePrimer, res.PlacedLevel)
	assert.False(t, res.LevelDropped)
	assert.Equal(t, "student-1", res.UserID)
	assert.Equal(t, "t1", res.TestID)

	require.Len(t, h.pres.Summaries, 1)
	assert.Equal(t, 9, h.pres.Summaries[0].OralErrors)
	assert.Equal(t, 1, h.pres.Summaries[0].Score)
}

func TestPassage_SkipLeavesComprehensionTotal(t *testing.T) {
	def := passageTest()
	h := newHarness(t, def, testConfig(def))
	h.c.Handle(assessment.DoneReading{})

	h.say("a cat")
	h.settle()
	h.c.Handle(assessment.SkipQuestion{})
	h.c.Handle(assessment.SkipQuestion{})
	h.settle()

	require.True(t, h.c.Finished())
	got := h.c.Evidence().Comprehension
	require.Len(t, got, 1)
	assert.Equal(t, assessment.Correct, got[0].Status)

	res, ok := h.c.Result()
	require.True(t, ok)
	assert.Equal(t, 100, res.ComprehensionPercent)
	assert.Equal(t, level.Independent, res.ComprehensionClassification)
	require.Len(t, h.pres.Summaries, 1)
	assert.Equal(t, 1, h.pres.Summaries[0].Score)
	assert.Equal(t, 3, h.pres.Summaries[0].Total)
}

func TestPassage_FinalMismatchIsIncorrect(t *testing.T) {
	def := passageTest()
	h := newHarness(t, def, testConfig(def))
	h.c.Handle(assessment.DoneReading{})

	h.murmur("a dog maybe")
	assert.Empty(t, h.c.Evidence().Comprehension, "interim mismatch waits for final")
	h.say("a dog")
	got := h.c.Evidence().Comprehension
	require.Len(t, got, 1)
	assert.Equal(t, assessment.Incorrect, got[0].Status)
	assert.Equal(t, "a dog", got[0].Spoken)
}

func TestPassage_MissingLevelFails(t *testing.T) {
	def := single("passages", testdef.Passage{Levels: []testdef.PassageLevel{{
		Level: level.Level3, Text: "Words.", Questions: []testdef.Question{{Question: "q", Answer: "a"}},
	}}})
	h := newHarness(t, def, testConfig(def))
	assert.ErrorIs(t, h.c.Err(), assessment.ErrConfig)
}

func TestConfirmStages_WaitsForContinue(t *testing.T) {
	def := &testdef.Test{ID: "t1", Stages: []testdef.Stage{
		{ID: "letters_common", Content: testdef.Letters{Items: []string{"a"}}},
		{ID: "sight_words", Content: testdef.WordList{Levels: map[level.Level][]string{level.PrePrimer: {"the"}}}},
	}}
	cfg := testConfig(def)
	cfg.ConfirmStages = true
	h := newHarness(t, def, cfg)

	h.say("a")
	h.settle()

	require.Len(t, h.pres.Summaries, 1)
	s := h.pres.Summaries[0]
	assert.Equal(t, "Thank you. Please Prepare to Call some Words.", s.Message)
	assert.True(t, s.AwaitContinue)
	assert.True(t, h.c.State().AwaitingContinue)

	prompts := len(h.pres.Prompts)
	h.say("the")
	assert.Empty(t, h.c.Evidence().Words)
	assert.Len(t, h.pres.Prompts, prompts)

	h.c.Handle(assessment.Continue{})
	assert.Equal(t, "the", h.pres.LastPrompt().Text)
	assert.Equal(t, "sight_words", h.c.State().StageID)
}

func TestStop_ClosesWindowAndIgnoresEvents(t *testing.T) {
	def := single("letters_common", testdef.Letters{Items: []string{"a"}})
	h := newHarness(t, def, testConfig(def))

	h.c.Stop()
	assert.True(t, h.c.Done())
	_, stops := h.rec.Counts()
	assert.Equal(t, 1, stops)
	assert.Zero(t, h.sched.Pending())

	h.say("a")
	assert.Empty(t, h.c.Evidence().Letters)
	_, ok := h.c.Result()
	assert.False(t, ok)
}

func TestStart_InvalidDefinition(t *testing.T) {
	h := newHarness(t, &testdef.Test{ID: "empty"}, assessment.DefaultConfig())
	assert.ErrorIs(t, h.c.Err(), assessment.ErrConfig)
	require.Len(t, h.pres.Errors, 1)
}

// student answers every prompt of a test.
type student struct {
	answers map[string]string
	silent  bool
}

func newStudent(def *testdef.Test) *student {
	s := &student{answers: make(map[string]string)}
	for _, st := range def.Stages {
		if p, ok := st.Content.(testdef.Passage); ok {
			for _, pl := range p.Levels {
				for _, q := range pl.Questions {
					s.answers[q.Question] = q.Answers()[0]
				}
			}
		}
	}
	return s
}

// run drives h until the controller is done, reacting to each new prompt.
func (s *student) run(h *harness) {
	h.t.Helper()
	seen := 0
	for steps := 0; !h.c.Done(); steps++ {
		require.Less(h.t, steps, 1000, "assessment did not finish")
		if len(h.pres.Prompts) == seen {
			if h.c.State().Mode == assessment.ModeReading {
				h.c.Handle(assessment.DoneReading{})
				continue
			}
			require.True(h.t, h.sched.Flush(h.c), "stalled without pending timers")
			continue
		}
		seen = len(h.pres.Prompts)
		p := h.pres.LastPrompt()
		if s.silent {
			continue
		}
		switch p.Mode {
		case assessment.ModeQuestion:
			h.say(s.answers[p.Text])
		default:
			h.say(p.Text)
		}
	}
}

func loadPlacement(t *testing.T) *testdef.Test {
	t.Helper()
	b, err := os.ReadFile("../testdef/testdata/placement.yaml")
	require.NoError(t, err)
	def, err := testdef.ParseYAML(b)
	require.NoError(t, err)
	return def
}

func TestFullPlacement_StrongReader(t *testing.T) {
	def := loadPlacement(t)
	h := newHarness(t, def, assessment.DefaultConfig())
	newStudent(def).run(h)

	require.NoError(t, h.c.Err())
	res, ok := h.c.Result()
	require.True(t, ok)

	assert.Equal(t, 4, h.c.State().HighestSentence)
	assert.Equal(t, level.Level4, h.c.State().WordListLevel)
	assert.Equal(t, level.Level4, res.PassageLevel)
	assert.Equal(t, level.Level4, res.PlacedLevel)
	assert.False(t, res.LevelDropped)
	assert.Equal(t, 0, res.OralErrors)
	assert.Equal(t, 100, res.ComprehensionPercent)
	assert.Equal(t, level.Independent, res.OralClassification)
	assert.Equal(t, level.Independent, res.ComprehensionClassification)

	assert.Len(t, res.Logs.Letters, 4+3*2)
	assert.Len(t, res.Logs.Sentences, 5)
	assert.Len(t, res.Logs.Words, 20)
	assert.Len(t, res.Logs.Comprehension, 2)
	assert.Len(t, h.pres.Summaries, 5)
	assert.Equal(t, "Thank you. Please Prepare to Call some Sentences.", h.pres.Summaries[1].Message)
	assert.Equal(t, "Thank you. Please Prepare to Read a Passage.", h.pres.Summaries[3].Message)

	for i, a := range res.Logs.Sentences {
		assert.Equal(t, i, a.SentenceID, "filter sentences keep their order")
	}
}

func TestFullPlacement_SilentReader(t *testing.T) {
	def := loadPlacement(t)
	h := newHarness(t, def, assessment.DefaultConfig())
	(&student{silent: true}).run(h)

	res, ok := h.c.Result()
	require.True(t, ok)
	assert.Equal(t, -1, h.c.State().HighestSentence)
	assert.Equal(t, level.PrePrimer, h.c.State().WordListLevel)
	assert.Equal(t, level.PrePrimer, res.PassageLevel)
	assert.Equal(t, level.PrePrimer, res.PlacedLevel)
	assert.False(t, res.LevelDropped)
	assert.Equal(t, 12, res.OralErrors)
	assert.Equal(t, 0, res.ComprehensionPercent)

	assert.Len(t, res.Logs.Words, 10)
	for _, w := range res.Logs.Words {
		assert.Equal(t, assessment.NoResponse, w.Status)
	}
	for _, l := range res.Logs.Letters {
		assert.Equal(t, "(no response)", l.Spoken)
	}
}
