// Package mock provides test doubles for the assessment package interfaces.
//
// Presenter records every call the controller makes so tests can assert on
// prompts, feedback and summaries. Recognizer counts Start and Stop calls.
// Sink captures saved results.
//
// Example:
//
//	pres := &mock.Presenter{}
//	rec := &mock.Recognizer{}
//	sched := assessment.NewManualScheduler()
//	c := assessment.NewController(def, pres, rec, sched)
//	c.Start()
//	c.Handle(assessment.Final("a"))
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/oralread/internal/align"
	"github.com/MrWong99/oralread/internal/assessment"
)

// Presenter is a recording implementation of assessment.Presenter. All
// methods are safe for concurrent use.
type Presenter struct {
	mu sync.Mutex

	// Prompts records every presented prompt in order.
	Prompts []assessment.Prompt
	// WordUpdates records every live word status update.
	WordUpdates [][]align.Word
	// Feedbacks records every feedback signal.
	Feedbacks []bool
	// HeardLog records every echoed transcript.
	HeardLog []string
	// Summaries records every stage summary.
	Summaries []assessment.Summary
	// Results records finished results.
	Results []assessment.Result
	// Errors records fatal errors.
	Errors []error
}

func (p *Presenter) Present(pr assessment.Prompt) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Prompts = append(p.Prompts, pr)
}

func (p *Presenter) Words(words []align.Word) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.WordUpdates = append(p.WordUpdates, words)
}

func (p *Presenter) Feedback(correct bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Feedbacks = append(p.Feedbacks, correct)
}

func (p *Presenter) Heard(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.HeardLog = append(p.HeardLog, text)
}

func (p *Presenter) StageComplete(s assessment.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Summaries = append(p.Summaries, s)
}

func (p *Presenter) Finished(r assessment.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Results = append(p.Results, r)
}

func (p *Presenter) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Errors = append(p.Errors, err)
}

// LastPrompt returns the most recent prompt, or the zero value.
func (p *Presenter) LastPrompt() assessment.Prompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Prompts) == 0 {
		return assessment.Prompt{}
	}
	return p.Prompts[len(p.Prompts)-1]
}

// LastWords returns the most recent word status update, or nil.
func (p *Presenter) LastWords() []align.Word {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.WordUpdates) == 0 {
		return nil
	}
	return p.WordUpdates[len(p.WordUpdates)-1]
}

// HeardTexts returns a copy of the echoed transcripts.
func (p *Presenter) HeardTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.HeardLog...)
}

// ResultCount returns the number of finished results. Thread-safe.
func (p *Presenter) ResultCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Results)
}

var _ assessment.Presenter = (*Presenter)(nil)

// Recognizer is a mock implementation of assessment.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by every Start call.
	StartErr error
	// StopErr, if non-nil, is returned by every Stop call.
	StopErr error

	// StartCount is the number of times Start was called.
	StartCount int
	// StopCount is the number of times Stop was called.
	StopCount int
}

// Start records the call and returns StartErr.
func (r *Recognizer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StartCount++
	return r.StartErr
}

// Stop records the call and returns StopErr.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StopCount++
	return r.StopErr
}

// Counts returns the Start and Stop call counts. Thread-safe.
func (r *Recognizer) Counts() (starts, stops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.StartCount, r.StopCount
}

var _ assessment.Recognizer = (*Recognizer)(nil)

// Sink is a mock implementation of assessment.ResultSink.
type Sink struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by SaveResult and nothing is recorded.
	Err error
	// Now, if set, supplies the timestamp assigned to saved results.
	Now func() time.Time

	// Saved records every successfully saved result.
	Saved []assessment.Result
}

// SaveResult assigns a timestamp and records r.
func (s *Sink) SaveResult(_ context.Context, r *assessment.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	r.Timestamp = now().UTC()
	s.Saved = append(s.Saved, *r)
	return nil
}

// SavedResults returns a copy of the saved results. Thread-safe.
func (s *Sink) SavedResults() []assessment.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]assessment.Result(nil), s.Saved...)
}

var _ assessment.ResultSink = (*Sink)(nil)
