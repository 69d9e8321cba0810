// Package observe provides application-wide observability primitives for
// oralread: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [Init] installs
// a Prometheus exporter bridge so they can be scraped from /metrics. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all oralread metrics.
const meterName = "github.com/MrWong99/oralread"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Assessment ---

	// Evidence counts scored attempts. Use with attributes:
	//   attribute.String("stage", ...), attribute.String("status", ...)
	Evidence metric.Int64Counter

	// Transcripts counts recognizer hypotheses delivered to sessions. Use with
	// attribute attribute.String("kind", "interim"|"final").
	Transcripts metric.Int64Counter

	// ListenTimeouts counts listening windows that elapsed. Use with
	// attribute attribute.String("stage", ...).
	ListenTimeouts metric.Int64Counter

	// AssessmentsCompleted counts finished assessments by placed level.
	AssessmentsCompleted metric.Int64Counter

	// SessionErrors counts sessions aborted by configuration errors.
	SessionErrors metric.Int64Counter

	// --- Persistence ---

	// ResultSaveDuration tracks result persistence latency per sink.
	ResultSaveDuration metric.Float64Histogram

	// ResultSaveErrors counts failed result saves. Use with attribute
	// attribute.String("sink", ...).
	ResultSaveErrors metric.Int64Counter

	// --- Providers ---

	// ProviderErrors counts speech provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live assessment sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks REST request processing time. Use with
	// attributes method, path and status.
	HTTPRequestDuration metric.Float64Histogram

	// SessionConnectionDuration tracks how long assessment websockets stay
	// open. Use with attribute path.
	SessionConnectionDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// storage round trips.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.Evidence, err = m.Int64Counter("oralread.evidence",
		metric.WithDescription("Scored attempts by stage kind and status."),
	); err != nil {
		return nil, err
	}
	if met.Transcripts, err = m.Int64Counter("oralread.transcripts",
		metric.WithDescription("Recognizer hypotheses delivered to sessions."),
	); err != nil {
		return nil, err
	}
	if met.ListenTimeouts, err = m.Int64Counter("oralread.listen.timeouts",
		metric.WithDescription("Listening windows that elapsed without a decision."),
	); err != nil {
		return nil, err
	}
	if met.AssessmentsCompleted, err = m.Int64Counter("oralread.assessments.completed",
		metric.WithDescription("Finished assessments by placed level."),
	); err != nil {
		return nil, err
	}
	if met.SessionErrors, err = m.Int64Counter("oralread.session.errors",
		metric.WithDescription("Sessions aborted by configuration errors."),
	); err != nil {
		return nil, err
	}

	// Persistence.
	if met.ResultSaveDuration, err = m.Float64Histogram("oralread.result.save.duration",
		metric.WithDescription("Latency of result persistence by sink."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ResultSaveErrors, err = m.Int64Counter("oralread.result.save.errors",
		metric.WithDescription("Failed result saves by sink."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("oralread.provider.errors",
		metric.WithDescription("Total speech provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("oralread.active_sessions",
		metric.WithDescription("Number of live assessment sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histograms.
	if met.HTTPRequestDuration, err = m.Float64Histogram("oralread.http.request.duration",
		metric.WithDescription("REST request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.SessionConnectionDuration, err = m.Float64Histogram("oralread.session.connection.duration",
		metric.WithDescription("Lifetime of assessment websocket connections."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(30, 60, 120, 300, 600, 900, 1200, 1800, 3600),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordEvidence records one scored attempt.
func (m *Metrics) RecordEvidence(ctx context.Context, stage, status string) {
	m.Evidence.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}

// RecordTranscript records one recognizer hypothesis.
func (m *Metrics) RecordTranscript(ctx context.Context, final bool) {
	kind := "interim"
	if final {
		kind = "final"
	}
	m.Transcripts.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordListenTimeout records an elapsed listening window.
func (m *Metrics) RecordListenTimeout(ctx context.Context, stage string) {
	m.ListenTimeouts.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordCompleted records a finished assessment.
func (m *Metrics) RecordCompleted(ctx context.Context, placedLevel string) {
	m.AssessmentsCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("placed_level", placedLevel)),
	)
}

// RecordResultSave records the latency and outcome of one save attempt.
func (m *Metrics) RecordResultSave(ctx context.Context, sink string, d time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("sink", sink))
	m.ResultSaveDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.ResultSaveErrors.Add(ctx, 1, attrs)
	}
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
