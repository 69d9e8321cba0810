package assessment

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/MrWong99/oralread/internal/observe"
	"github.com/MrWong99/oralread/internal/testdef"
)

// ResultSink persists finalized results. SaveResult assigns r.Timestamp.
type ResultSink interface {
	SaveResult(ctx context.Context, r *Result) error
}

// ErrSessionClosed is returned by [Session.Post] after the session ended.
var ErrSessionClosed = errors.New("assessment: session closed")

// saveTimeout bounds result persistence after the session finished.
const saveTimeout = 10 * time.Second

// SessionParams configures a [Session].
type SessionParams struct {
	ID     string
	UserID string
	Test   *testdef.Test
	Config Config

	Presenter  Presenter
	Recognizer Recognizer
	// Sink is optional. Persistence is best effort: a save failure is
	// logged and does not fail the session.
	Sink ResultSink

	Logger  *slog.Logger
	Metrics *observe.Metrics
	Rand    *rand.Rand
}

// Session runs one [Controller] on its own goroutine. Transport code posts
// events from any goroutine; timers post through the same queue, so the
// controller sees a single ordered event stream.
type Session struct {
	id      string
	userID  string
	testID  string
	ctrl    *Controller
	pres    Presenter
	sink    ResultSink
	log     *slog.Logger
	metrics *observe.Metrics

	events chan Event
	done   chan struct{}
}

// NewSession creates a session. Call [Session.Run] to start it.
func NewSession(p SessionParams) *Session {
	s := &Session{
		id:      p.ID,
		userID:  p.UserID,
		pres:    p.Presenter,
		sink:    p.Sink,
		log:     p.Logger,
		metrics: p.Metrics,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
	if p.Test != nil {
		s.testID = p.Test.ID
	}
	if s.pres == nil {
		s.pres = NopPresenter{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	opts := []Option{
		WithConfig(p.Config),
		WithLogger(s.log),
		WithMetrics(s.metrics),
		WithUser(p.UserID),
	}
	if p.Rand != nil {
		opts = append(opts, WithRand(p.Rand))
	}
	sched := clockScheduler{post: func(ev Event) { _ = s.Post(ev) }}
	s.ctrl = NewController(p.Test, s.pres, p.Recognizer, sched, opts...)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Test returns the prepared test the session administers.
func (s *Session) Test() *testdef.Test { return s.ctrl.Test() }

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// Post queues ev for the controller. It blocks while the queue is full and
// returns [ErrSessionClosed] once the session ended.
func (s *Session) Post(ev Event) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Run drives the controller until the assessment finishes, fails or ctx is
// cancelled. On completion the result is sent to the presenter and then
// saved to the sink. Run returns the configuration error of a failed
// assessment or ctx.Err() when cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	ctx, span := observe.StartSessionSpan(ctx, s.id, s.userID, s.testID)
	defer span.End()

	s.ctrl.Start()
	for !s.ctrl.Done() {
		select {
		case <-ctx.Done():
			s.ctrl.Stop()
			s.log.Info("session cancelled", "err", ctx.Err())
			return ctx.Err()
		case ev := <-s.events:
			s.ctrl.Handle(ev)
		}
	}

	if err := s.ctrl.Err(); err != nil {
		observe.Fail(span, err)
		return err
	}

	res, _ := s.ctrl.Result()
	span.SetAttributes(observe.KeyPlacedLevel.String(res.PlacedLevel.String()))
	s.pres.Finished(res)
	s.save(ctx, &res)
	return nil
}

func (s *Session) save(ctx context.Context, res *Result) {
	if s.sink == nil {
		return
	}
	// The client may disconnect right after the result is shown; the save
	// must still complete.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	ctx, span := observe.StartSpan(ctx, "assessment.save_result")
	defer span.End()

	if err := s.sink.SaveResult(ctx, res); err != nil {
		observe.Fail(span, err)
		s.log.Error("result save failed", "err", err, "user_id", res.UserID, "test_id", res.TestID)
		return
	}
	s.log.Info("result saved", "user_id", res.UserID, "test_id", res.TestID, "placed_level", res.PlacedLevel)
}
