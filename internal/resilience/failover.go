package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no member of a [Failover] succeeded.
var ErrAllFailed = errors.New("resilience: all members failed")

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Failover tries its members in registration order. Each member sits behind
// its own [Breaker]; members with an open breaker are skipped. Failover never
// retries a member within one call.
type Failover[T any] struct {
	cfg     BreakerConfig
	members []member[T]
}

// NewFailover returns a failover whose members get breakers configured from
// cfg (the Name field is replaced by each member's name).
func NewFailover[T any](cfg BreakerConfig) *Failover[T] {
	return &Failover[T]{cfg: cfg}
}

// Add appends a member. Add is not safe to call concurrently with Do.
func (f *Failover[T]) Add(name string, v T) *Failover[T] {
	cfg := f.cfg
	cfg.Name = name
	f.members = append(f.members, member[T]{name: name, value: v, breaker: NewBreaker(cfg)})
	return f
}

// Len returns the number of members.
func (f *Failover[T]) Len() int { return len(f.members) }

// States returns each member's breaker state keyed by member name.
func (f *Failover[T]) States() map[string]State {
	out := make(map[string]State, len(f.members))
	for _, m := range f.members {
		out[m.name] = m.breaker.State()
	}
	return out
}

// Do calls fn for each member until one returns nil. The error wraps
// [ErrAllFailed] and every member's error.
func (f *Failover[T]) Do(ctx context.Context, fn func(ctx context.Context, name string, v T) error) error {
	_, err := Call(ctx, f, func(ctx context.Context, name string, v T) (struct{}, error) {
		return struct{}{}, fn(ctx, name, v)
	})
	return err
}

// Call is [Failover.Do] for functions that return a value.
func Call[T, R any](ctx context.Context, f *Failover[T], fn func(ctx context.Context, name string, v T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	if len(f.members) == 0 {
		return zero, fmt.Errorf("%w: no members", ErrAllFailed)
	}
	for _, m := range f.members {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		var out R
		err := m.breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = fn(ctx, m.name, m.value)
			return err
		})
		if err == nil {
			return out, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("failover member skipped", "member", m.name)
		} else {
			slog.Warn("failover member failed", "member", m.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
