package assessment

import (
	"log/slog"
	"time"
)

// Recognizer is the speech recognition capability a session listens
// through. Start and Stop may fail when the recognizer is already in the
// requested state; the [Window] logs and absorbs such errors.
type Recognizer interface {
	Start() error
	Stop() error
}

// ListenState is the state of a [Window].
type ListenState int

const (
	// Idle: no recognition cycle is running.
	Idle ListenState = iota
	// Listening: a window is open and the recognizer should be running.
	Listening
	// Stopping: the window was closed on purpose and the recognizer has not
	// reported the end of its cycle yet.
	Stopping
)

func (s ListenState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Window is a bounded listening window over a [Recognizer].
//
// While a window is open the recognizer may end its recognition cycle on its
// own (browsers do this after every utterance). With auto-restart enabled the
// window starts a fresh cycle in that case. Closing the window sets a
// suppression flag so that the end event caused by an intentional stop never
// restarts recognition.
type Window struct {
	rec         Recognizer
	sched       Scheduler
	log         *slog.Logger
	autoRestart bool

	state    ListenState
	suppress bool
	cancel   func()
}

// NewWindow returns an idle window.
func NewWindow(rec Recognizer, sched Scheduler, autoRestart bool, log *slog.Logger) *Window {
	if log == nil {
		log = slog.Default()
	}
	return &Window{rec: rec, sched: sched, autoRestart: autoRestart, log: log}
}

// Open starts listening and, when d > 0, schedules timeout after d. An
// already open window is closed first.
func (w *Window) Open(d time.Duration, timeout Event) {
	w.Close()
	w.suppress = false
	if err := w.rec.Start(); err != nil {
		w.log.Warn("recognizer start failed", "err", err)
	}
	w.state = Listening
	if d > 0 {
		w.cancel = w.sched.Schedule(d, timeout)
	}
}

// Close cancels the pending timeout and stops the recognizer.
func (w *Window) Close() {
	w.cancelTimer()
	if w.state != Listening {
		return
	}
	w.suppress = true
	w.state = Stopping
	if err := w.rec.Stop(); err != nil {
		w.log.Warn("recognizer stop failed", "err", err)
	}
}

// Ended handles the recognizer's end-of-cycle notification.
func (w *Window) Ended() {
	switch w.state {
	case Listening:
		if w.suppress || !w.autoRestart {
			w.state = Idle
			return
		}
		if err := w.rec.Start(); err != nil {
			w.log.Warn("recognizer restart failed", "err", err)
		}
	case Stopping:
		w.state = Idle
		w.suppress = false
	}
}

// State returns the current state.
func (w *Window) State() ListenState {
	return w.state
}

func (w *Window) cancelTimer() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}
