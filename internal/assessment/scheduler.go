package assessment

import (
	"slices"
	"sync"
	"time"
)

// Scheduler delivers an event after a delay. The returned cancel function
// prevents delivery if the event has not been delivered yet; calling it more
// than once is harmless.
type Scheduler interface {
	Schedule(d time.Duration, ev Event) (cancel func())
}

// Handler consumes events. [*Controller] implements it.
type Handler interface {
	Handle(ev Event)
}

// clockScheduler posts events into a session queue from [time.AfterFunc]
// callbacks.
type clockScheduler struct {
	post func(Event)
}

func (s clockScheduler) Schedule(d time.Duration, ev Event) func() {
	t := time.AfterFunc(d, func() { s.post(ev) })
	return func() { t.Stop() }
}

// ManualScheduler is a deterministic [Scheduler] driven by [ManualScheduler.Advance].
// Tests and the replay command use it in place of the wall clock.
//
// ManualScheduler is safe for concurrent use, but Advance delivers events on
// the calling goroutine.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	at        time.Duration
	seq       uint64
	ev        Event
	cancelled bool
}

// NewManualScheduler returns a scheduler whose clock starts at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule implements [Scheduler].
func (m *ManualScheduler) Schedule(d time.Duration, ev Event) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{at: m.now + d, seq: m.seq, ev: ev}
	m.timers = append(m.timers, t)
	return func() {
		m.mu.Lock()
		t.cancelled = true
		m.mu.Unlock()
	}
}

// Now returns the elapsed virtual time.
func (m *ManualScheduler) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of timers that have neither fired nor been
// cancelled.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, delivering every due event to h in
// deadline order (ties in scheduling order). Events scheduled by h while
// advancing are delivered too when they fall due within the same span.
func (m *ManualScheduler) Advance(h Handler, d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		t := m.popDue(target)
		if t == nil {
			break
		}
		h.Handle(t.ev)
	}

	m.mu.Lock()
	if m.now < target {
		m.now = target
	}
	m.mu.Unlock()
}

// Flush delivers the next due event, advancing the clock to its deadline,
// and reports whether one was delivered.
func (m *ManualScheduler) Flush(h Handler) bool {
	t := m.popDue(-1)
	if t == nil {
		return false
	}
	h.Handle(t.ev)
	return true
}

// popDue removes and returns the earliest live timer due at or before limit
// (any deadline when limit < 0), moving the clock to its deadline.
func (m *ManualScheduler) popDue(limit time.Duration) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timers = slices.DeleteFunc(m.timers, func(t *manualTimer) bool { return t.cancelled })
	idx := -1
	for i, t := range m.timers {
		if limit >= 0 && t.at > limit {
			continue
		}
		if idx < 0 || t.at < m.timers[idx].at || (t.at == m.timers[idx].at && t.seq < m.timers[idx].seq) {
			idx = i
		}
	}
	if idx < 0 {
		return nil
	}
	t := m.timers[idx]
	m.timers = slices.Delete(m.timers, idx, idx+1)
	if t.at > m.now {
		m.now = t.at
	}
	return t
}
