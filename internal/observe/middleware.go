package observe

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceHeader carries the request's trace id back to the client so support
// requests about a failed session can be matched to server logs.
const TraceHeader = "X-Trace-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets websocket upgrades reach the underlying [http.Hijacker].
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// routeName returns the matched mux path template so attributes never carry
// user or test ids. Requests outside a router use the raw path.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// probePaths are logged at debug level.
var probePaths = []string{"/healthz", "/readyz", "/metrics"}

// Middleware traces each request, joins W3C trace context from the caller,
// returns the trace id in [TraceHeader] and logs completion. REST requests
// are recorded in [Metrics.HTTPRequestDuration]; websocket upgrades carry a
// whole assessment and go to [Metrics.SessionConnectionDuration] instead.
//
// Install it with [mux.Router.Use] so the route template is known.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeName(r)
			ws := isUpgrade(r)

			name := "HTTP " + r.Method + " " + route
			if ws {
				name = "WS " + route
			}
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, name,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					semconv.HTTPRoute(route),
				),
			)
			defer span.End()

			traceID := span.SpanContext().TraceID().String()
			w.Header().Set(TraceHeader, traceID)
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))
			elapsed := time.Since(start)
			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))

			if ws {
				m.SessionConnectionDuration.Record(ctx, elapsed.Seconds(),
					metric.WithAttributes(attribute.String("path", route)))
				slog.LogAttrs(ctx, slog.LevelInfo, "session connection closed",
					slog.String("trace_id", traceID),
					slog.String("path", r.URL.Path),
					slog.Int("status", rec.status),
					slog.Duration("duration", elapsed),
				)
				return
			}

			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", route),
					attribute.String("status", strconv.Itoa(rec.status)),
				),
			)
			lvl := slog.LevelInfo
			for _, p := range probePaths {
				if strings.HasPrefix(r.URL.Path, p) {
					lvl = slog.LevelDebug
					break
				}
			}
			slog.LogAttrs(ctx, lvl, "request completed",
				slog.String("trace_id", traceID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", elapsed),
			)
		})
	}
}
