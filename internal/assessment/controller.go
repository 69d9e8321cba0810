// Package assessment is the oral reading assessment engine: the controller
// state machine that walks a student through the stages of a test, the stage
// evaluators that score each utterance, and the evidence logs and result
// finalizer that produce the placement record.
//
// A [Controller] is synchronous and single-threaded. It reacts to [Event]
// values passed to [Controller.Handle] and talks to the outside world only
// through a [Presenter], a [Recognizer] and a [Scheduler]. [Session] wraps a
// controller in one goroutine for live use; tests and the replay command
// drive a controller directly with a [ManualScheduler].
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/MrWong99/oralread/internal/align"
	"github.com/MrWong99/oralread/internal/level"
	"github.com/MrWong99/oralread/internal/observe"
	"github.com/MrWong99/oralread/internal/testdef"
)

// ErrConfig marks errors caused by a test definition that cannot be
// administered, such as a missing passage for the selected level. They are
// fatal to the session.
var ErrConfig = errors.New("assessment: configuration error")

// stageRunner evaluates one stage. Runners are created on stage entry and
// discarded when the stage ends.
type stageRunner interface {
	start()
	handle(ev Event)
	summary() Summary
	// echo maps a cleaned transcript to the text shown as "heard".
	echo(text string) string
	position() (item int, mode Mode)
}

// Option configures a [Controller].
type Option func(*Controller)

// WithConfig replaces [DefaultConfig].
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithRand sets the random source used for shuffling and word draws.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rng = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithUser sets the user id recorded on the result.
func WithUser(userID string) Option {
	return func(c *Controller) { c.userID = userID }
}

// Controller is the assessment state machine. It is not safe for concurrent
// use; all calls must come from the goroutine that owns it.
type Controller struct {
	test    *testdef.Test
	cfg     Config
	pres    Presenter
	sched   Scheduler
	win     *Window
	rng     *rand.Rand
	log     *slog.Logger
	metrics *observe.Metrics
	userID  string

	gate     Gate
	evidence Evidence

	started          bool
	stageIdx         int
	runner           stageRunner
	awaitingContinue bool
	stopped          bool
	err              error
	result           *Result

	// Placement state carried across stages.
	highestSentence int
	wordLevel       level.Level
	passageLevel    level.Level
	passage         *align.Attempt

	deferSeq     uint64
	deferred     map[uint64]func()
	deferCancels map[uint64]func()
}

// NewController prepares def for one administration (shuffling items
// outside the ordered stages) and returns a controller that has not started
// yet.
func NewController(def *testdef.Test, p Presenter, rec Recognizer, sched Scheduler, opts ...Option) *Controller {
	c := &Controller{
		cfg:             DefaultConfig(),
		pres:            p,
		sched:           sched,
		highestSentence: -1,
		deferred:        make(map[uint64]func()),
		deferCancels:    make(map[uint64]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pres == nil {
		c.pres = NopPresenter{}
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	c.win = NewWindow(rec, sched, c.cfg.AutoRestart, c.log)
	if def != nil {
		c.test = def.Prepare(c.rng, c.cfg.OrderedStages)
	}
	return c
}

// Start validates the test and enters the first stage. Calling Start again
// has no effect.
func (c *Controller) Start() {
	if c.started {
		return
	}
	c.started = true
	if c.test == nil {
		c.fail(fmt.Errorf("%w: no test definition", ErrConfig))
		return
	}
	if err := testdef.Validate(c.test); err != nil {
		c.fail(fmt.Errorf("%w: %w", ErrConfig, err))
		return
	}
	c.log.Info("assessment started", "test_id", c.test.ID, "stages", len(c.test.Stages))
	c.enterStage(0)
}

// Handle applies one event. Events that arrive after the assessment
// finished, failed or stopped are ignored.
func (c *Controller) Handle(ev Event) {
	if !c.started || c.Done() {
		return
	}
	switch ev := ev.(type) {
	case deferred:
		fn, ok := c.deferred[ev.id]
		if !ok {
			return
		}
		delete(c.deferred, ev.id)
		delete(c.deferCancels, ev.id)
		fn()
		return
	case RecognizerEnded:
		c.win.Ended()
		return
	case Continue:
		if c.awaitingContinue {
			c.awaitingContinue = false
			c.enterStage(c.stageIdx + 1)
		}
		return
	case Transcript:
		c.metrics.RecordTranscript(context.Background(), ev.Final)
		if c.runner != nil && !c.awaitingContinue {
			if text := echoText(ev.Text); text != "" {
				c.pres.Heard(c.runner.echo(text))
			}
		}
	}
	if c.runner != nil && !c.awaitingContinue {
		c.runner.handle(ev)
	}
}

// Stop abandons the assessment: recognition is stopped and pending timers
// are cancelled. No result is produced.
func (c *Controller) Stop() {
	if c.Done() {
		return
	}
	c.stopped = true
	c.teardown()
}

// Done reports whether the controller will accept no further events.
func (c *Controller) Done() bool {
	return c.result != nil || c.err != nil || c.stopped
}

// Finished reports whether the assessment completed with a result.
func (c *Controller) Finished() bool {
	return c.result != nil
}

// Result returns the final result once the assessment completed.
func (c *Controller) Result() (Result, bool) {
	if c.result == nil {
		return Result{}, false
	}
	return *c.result, true
}

// Err returns the configuration error that aborted the assessment, if any.
func (c *Controller) Err() error {
	return c.err
}

// Evidence returns a snapshot of the evidence logs.
func (c *Controller) Evidence() Logs {
	return c.evidence.Snapshot()
}

// Test returns the prepared test being administered.
func (c *Controller) Test() *testdef.Test {
	return c.test
}

// Snapshot is a read-only view of the controller state.
type Snapshot struct {
	StageIndex       int
	StageID          string
	Kind             testdef.Kind
	Item             int
	Mode             Mode
	HighestSentence  int
	WordListLevel    level.Level
	PassageLevel     level.Level
	Listening        ListenState
	AwaitingContinue bool
	Finished         bool
	Err              error
}

// State returns a snapshot of the controller state.
func (c *Controller) State() Snapshot {
	s := Snapshot{
		StageIndex:       c.stageIdx,
		HighestSentence:  c.highestSentence,
		WordListLevel:    c.wordLevel,
		PassageLevel:     c.passageLevel,
		Listening:        c.win.State(),
		AwaitingContinue: c.awaitingContinue,
		Finished:         c.result != nil,
		Err:              c.err,
	}
	if c.test != nil && c.stageIdx < len(c.test.Stages) {
		st := c.test.Stages[c.stageIdx]
		s.StageID, s.Kind = st.ID, st.Kind()
	}
	if c.runner != nil {
		s.Item, s.Mode = c.runner.position()
	}
	return s
}

func (c *Controller) enterStage(i int) {
	if i >= len(c.test.Stages) {
		c.finish()
		return
	}
	c.stageIdx = i
	stage := c.test.Stages[i]
	r, err := c.newRunner(stage)
	if err != nil {
		c.fail(err)
		return
	}
	c.runner = r
	c.log.Info("stage started", "stage", stage.ID, "kind", stage.Kind(), "index", i)
	r.start()
}

func (c *Controller) newRunner(stage testdef.Stage) (stageRunner, error) {
	switch content := stage.Content.(type) {
	case testdef.Letters:
		return newLetterRunner(c, stage.ID, content), nil
	case testdef.Sentences:
		return newSentenceRunner(c, stage.ID, content), nil
	case testdef.WordList:
		return newWordListRunner(c, stage.ID, content), nil
	case testdef.Passage:
		return newPassageRunner(c, stage.ID, content), nil
	default:
		return nil, fmt.Errorf("%w: stage %q has unsupported content %T", ErrConfig, stage.ID, stage.Content)
	}
}

// endStage is called by a runner once its last item is resolved.
func (c *Controller) endStage() {
	c.win.Close()
	c.gate.Disarm()

	s := c.runner.summary()
	next := c.stageIdx + 1
	last := next >= len(c.test.Stages)
	if !last {
		s.Message = nextMessage(c.test.Stages[next].Kind())
		s.AwaitContinue = c.cfg.ConfirmStages
	}
	c.log.Info("stage complete", "stage", s.StageID, "score", s.Score, "total", s.Total)
	c.pres.StageComplete(s)

	switch {
	case last:
		c.finish()
	case c.cfg.ConfirmStages:
		c.awaitingContinue = true
	default:
		c.enterStage(next)
	}
}

func (c *Controller) finish() {
	c.teardown()
	oralErrors := 0
	if c.passage != nil {
		oralErrors = c.passage.Errors()
	}
	res := Finalize(c.userID, c.test.ID, c.passageLevel, oralErrors, c.evidence.Snapshot())
	c.result = &res
	c.metrics.RecordCompleted(context.Background(), res.PlacedLevel.String())
	c.log.Info("assessment finished",
		"test_id", res.TestID,
		"placed_level", res.PlacedLevel,
		"oral_errors", res.OralErrors,
		"comprehension_percent", res.ComprehensionPercent,
	)
}

func (c *Controller) fail(err error) {
	c.err = err
	c.teardown()
	c.metrics.SessionErrors.Add(context.Background(), 1)
	c.log.Error("assessment aborted", "err", err)
	c.pres.Fail(err)
}

func (c *Controller) teardown() {
	c.win.Close()
	c.gate.Disarm()
	for id, cancel := range c.deferCancels {
		cancel()
		delete(c.deferCancels, id)
		delete(c.deferred, id)
	}
}

// listen arms the gate for a new item and opens a listening window whose
// timeout carries the new token. d <= 0 opens an unbounded window.
func (c *Controller) listen(d time.Duration) Token {
	tok := c.gate.Arm()
	c.win.Open(d, Timeout{Token: tok})
	return tok
}

// after runs fn on the controller goroutine once d has elapsed.
func (c *Controller) after(d time.Duration, fn func()) {
	c.deferSeq++
	id := c.deferSeq
	c.deferred[id] = fn
	c.deferCancels[id] = c.sched.Schedule(d, deferred{id: id})
}

func (c *Controller) timedOut(kind testdef.Kind) {
	c.metrics.RecordListenTimeout(context.Background(), string(kind))
}

func (c *Controller) scored(kind testdef.Kind, status Status) {
	c.metrics.RecordEvidence(context.Background(), string(kind), string(status))
}

func (c *Controller) prompt(stageID string, kind testdef.Kind, mode Mode, text, help string, index, total int) Prompt {
	return Prompt{
		StageID: stageID,
		Kind:    kind,
		Mode:    mode,
		Header:  headers[kind],
		Text:    text,
		Help:    help,
		Index:   index,
		Total:   total,
	}
}

var echoReplacer = strings.NewReplacer(".", "", ",", "", "?", "", "!", "")

// echoText strips sentence punctuation from a transcript for display.
func echoText(text string) string {
	return strings.TrimSpace(echoReplacer.Replace(text))
}

// spokenText is the form of a transcript written to the evidence logs.
func spokenText(text string) string {
	return strings.ToLower(echoText(text))
}
