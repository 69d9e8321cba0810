package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/oralread"

// Attribute keys shared by spans and log records.
const (
	KeySessionID   = attribute.Key("oralread.session_id")
	KeyUserID      = attribute.Key("oralread.user_id")
	KeyTestID      = attribute.Key("oralread.test_id")
	KeyPlacedLevel = attribute.Key("oralread.placed_level")
)

// StartSpan starts a span on the global tracer provider. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// StartSessionSpan starts the span covering one assessment session.
func StartSessionSpan(ctx context.Context, sessionID, userID, testID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "assessment.session", trace.WithAttributes(
		KeySessionID.String(sessionID),
		KeyUserID.String(userID),
		KeyTestID.String(testID),
	))
}

// Fail marks span as failed with err. A nil err leaves the span untouched.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Logger returns the default logger with trace_id and span_id from ctx,
// or the plain default logger when ctx carries no span.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}

// SessionLogger returns [Logger] for ctx with the session, user and test
// identifiers attached.
func SessionLogger(ctx context.Context, sessionID, userID, testID string) *slog.Logger {
	return Logger(ctx).With(
		slog.String("session_id", sessionID),
		slog.String("user_id", userID),
		slog.String("test_id", testID),
	)
}
