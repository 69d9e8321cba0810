package store

import (
	"context"
	"time"

	"github.com/MrWong99/oralread/internal/assessment"
	"github.com/MrWong99/oralread/internal/observe"
	"github.com/MrWong99/oralread/internal/resilience"
)

// FailoverSink saves each result to the first sink that accepts it. Every
// sink sits behind its own circuit breaker, so a backend that keeps failing
// is skipped until its reset timeout elapses. A failed sink is never retried
// within one save.
type FailoverSink struct {
	f       *resilience.Failover[assessment.ResultSink]
	metrics *observe.Metrics
}

var _ assessment.ResultSink = (*FailoverSink)(nil)

// NewFailoverSink returns an empty sink; register backends with Add. A nil
// metrics uses [observe.DefaultMetrics].
func NewFailoverSink(cfg resilience.BreakerConfig, metrics *observe.Metrics) *FailoverSink {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &FailoverSink{
		f:       resilience.NewFailover[assessment.ResultSink](cfg),
		metrics: metrics,
	}
}

// Add registers sink under name. Sinks are tried in the order added.
func (s *FailoverSink) Add(name string, sink assessment.ResultSink) *FailoverSink {
	s.f.Add(name, sink)
	return s
}

// Len returns the number of registered sinks.
func (s *FailoverSink) Len() int { return s.f.Len() }

// States reports each sink's breaker state.
func (s *FailoverSink) States() map[string]resilience.State { return s.f.States() }

// SaveResult implements [assessment.ResultSink].
func (s *FailoverSink) SaveResult(ctx context.Context, r *assessment.Result) error {
	return s.f.Do(ctx, func(ctx context.Context, name string, sink assessment.ResultSink) error {
		start := time.Now()
		err := sink.SaveResult(ctx, r)
		s.metrics.RecordResultSave(ctx, name, time.Since(start), err)
		return err
	})
}
