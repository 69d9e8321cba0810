// Package resilience provides the circuit breaker and ordered failover used
// in front of result sinks and speech providers.
//
// [Breaker] is a three-state breaker (closed, open, half-open). [Failover]
// tries a list of members in order, each behind its own breaker, and skips
// members whose breaker is open.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota
	// StateOpen rejects calls until the reset timeout elapses.
	StateOpen
	// StateHalfOpen lets a bounded number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take the defaults noted.
type BreakerConfig struct {
	// Name labels log lines and state-change callbacks.
	Name string
	// MaxFailures consecutive failures open the breaker. Default 5.
	MaxFailures int
	// ResetTimeout is how long the breaker stays open. Default 30s.
	ResetTimeout time.Duration
	// HalfOpenProbes successful probes close the breaker again. Default 1.
	HalfOpenProbes int

	// OnStateChange, if set, is called after every transition. It runs with
	// the breaker's lock released.
	OnStateChange func(name string, from, to State)
	// Now overrides the clock. Default time.Now.
	Now func() time.Time
}

// Breaker is a circuit breaker.
type Breaker struct {
	name          string
	maxFailures   int
	resetTimeout  time.Duration
	probes        int
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	inFlight  int
	successes int
}

// NewBreaker returns a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		name:          cfg.Name,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		probes:        cfg.HalfOpenProbes,
		onStateChange: cfg.OnStateChange,
		now:           cfg.Now,
	}
}

// Name returns the configured name.
func (b *Breaker) Name() string { return b.name }

// Do runs fn unless the breaker is open. Errors caused by ctx being done are
// returned but not counted as failures.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		b.release(probe)
		return err
	}
	b.record(probe, err)
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	var from State
	changed := false
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			b.mu.Unlock()
			return false, ErrCircuitOpen
		}
		from, changed = b.state, true
		b.state = StateHalfOpen
		b.inFlight, b.successes = 0, 0
		fallthrough
	case StateHalfOpen:
		if b.inFlight >= b.probes {
			b.mu.Unlock()
			b.notify(changed, from, StateHalfOpen)
			return false, ErrCircuitOpen
		}
		b.inFlight++
		probe = true
	}
	b.mu.Unlock()
	b.notify(changed, from, StateHalfOpen)
	return probe, nil
}

func (b *Breaker) release(probe bool) {
	if !probe {
		return
	}
	b.mu.Lock()
	if b.state == StateHalfOpen && b.inFlight > 0 {
		b.inFlight--
	}
	b.mu.Unlock()
}

func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	from := b.state
	switch {
	case err != nil && probe:
		b.trip()
	case err != nil:
		b.failures++
		if b.state == StateClosed && b.failures >= b.maxFailures {
			b.trip()
		}
	case probe && b.state == StateHalfOpen:
		b.successes++
		if b.successes >= b.probes {
			b.state = StateClosed
			b.failures = 0
		}
	default:
		b.failures = 0
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from != to, from, to)
}

// trip opens the breaker. Must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
}

func (b *Breaker) notify(changed bool, from, to State) {
	if !changed {
		return
	}
	switch to {
	case StateOpen:
		slog.Warn("circuit breaker opened", "name", b.name, "from", from)
	default:
		slog.Info("circuit breaker state changed", "name", b.name, "from", from, "to", to)
	}
	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

// State reports the current state. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the
// next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures, b.inFlight, b.successes = 0, 0, 0
	b.mu.Unlock()
	b.notify(from != StateClosed, from, StateClosed)
}
