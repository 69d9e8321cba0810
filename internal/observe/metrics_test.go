package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the data point carrying key=value, or -1.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return -1
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordEvidence(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEvidence(ctx, "word_list", "correct")
	m.RecordEvidence(ctx, "word_list", "correct")
	m.RecordEvidence(ctx, "word_list", "no_response")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "oralread.evidence", "status", "correct"); got != 2 {
		t.Errorf("correct = %d, want 2", got)
	}
	if got := sumFor(t, rm, "oralread.evidence", "status", "no_response"); got != 1 {
		t.Errorf("no_response = %d, want 1", got)
	}
}

func TestRecordTranscript(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTranscript(ctx, false)
	m.RecordTranscript(ctx, false)
	m.RecordTranscript(ctx, true)

	rm := collect(t, reader)
	if got := sumFor(t, rm, "oralread.transcripts", "kind", "interim"); got != 2 {
		t.Errorf("interim = %d, want 2", got)
	}
	if got := sumFor(t, rm, "oralread.transcripts", "kind", "final"); got != 1 {
		t.Errorf("final = %d, want 1", got)
	}
}

func TestRecordCompletedAndTimeouts(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCompleted(ctx, "level_2")
	m.RecordListenTimeout(ctx, "letter_recognition")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "oralread.assessments.completed", "placed_level", "level_2"); got != 1 {
		t.Errorf("completed = %d, want 1", got)
	}
	if got := sumFor(t, rm, "oralread.listen.timeouts", "stage", "letter_recognition"); got != 1 {
		t.Errorf("timeouts = %d, want 1", got)
	}
}

func TestRecordResultSave(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordResultSave(ctx, "postgres", 20*time.Millisecond, nil)
	m.RecordResultSave(ctx, "postgres", 30*time.Millisecond, errors.New("boom"))

	rm := collect(t, reader)
	met := findMetric(rm, "oralread.result.save.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 2 {
		t.Errorf("histogram data points = %+v, want one point with 2 samples", hist.DataPoints)
	}
	if got := sumFor(t, rm, "oralread.result.save.errors", "sink", "postgres"); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
}

func TestProviderErrorsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordProviderError(context.Background(), "deepgram", "stt")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "oralread.provider.errors", "provider", "deepgram"); got != 1 {
		t.Errorf("counter value = %d, want 1", got)
	}
}

func TestActiveSessionsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "oralread.active_sessions")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatal("metric is not a sum with data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("gauge value = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
