// Package app wires all oralread subsystems into a running server.
//
// The App struct owns the full lifecycle: New opens the configured stores,
// builds the speech provider chain and the HTTP router, Run serves until the
// context is cancelled, and Shutdown tears everything down in order.
//
// For testing, inject in-memory implementations via functional options
// (WithDefinitions, WithResultSink, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/oralread/internal/assessment"
	"github.com/MrWong99/oralread/internal/auth"
	"github.com/MrWong99/oralread/internal/config"
	"github.com/MrWong99/oralread/internal/health"
	"github.com/MrWong99/oralread/internal/observe"
	"github.com/MrWong99/oralread/internal/resilience"
	"github.com/MrWong99/oralread/internal/store"
	"github.com/MrWong99/oralread/pkg/provider/stt"
)

// readHeaderTimeout bounds reading request headers.
const readHeaderTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	metrics  *observe.Metrics

	// Subsystems are initialised in New and torn down in Shutdown.
	verifier *auth.Verifier
	defs     store.DefinitionSource
	sink     assessment.ResultSink
	results  store.ResultReader
	speech   stt.Provider
	sessions *SessionManager
	checks   []health.Checker
	handler  http.Handler

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDefinitions injects the definition source instead of opening the
// configured backend.
func WithDefinitions(d store.DefinitionSource) Option {
	return func(a *App) { a.defs = d }
}

// WithResultSink injects the result sink instead of building the failover
// chain from storage.results.
func WithResultSink(s assessment.ResultSink) Option {
	return func(a *App) { a.sink = s }
}

// WithResultReader injects the reader behind GET /api/v1/results/{userID}.
func WithResultReader(r store.ResultReader) Option {
	return func(a *App) { a.results = r }
}

// WithSpeechProvider injects the server-side speech provider instead of
// building one from speech.providers.
func WithSpeechProvider(p stt.Provider) Option {
	return func(a *App) { a.speech = p }
}

// WithRegistry sets the provider registry used to build speech providers.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New validates cfg and creates an App by wiring all subsystems together.
// On error, everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("app: invalid config: %w", err)
	}
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.registry == nil {
		a.registry = config.NewRegistry()
	}

	v, err := auth.NewVerifier([]byte(cfg.Auth.Secret), cfg.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("app: init auth: %w", err)
	}
	a.verifier = v

	// ── 1. Storage ───────────────────────────────────────────────────────
	if err := a.initStorage(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	// ── 2. Speech ────────────────────────────────────────────────────────
	if err := a.initSpeech(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init speech: %w", err)
	}

	// ── 3. Sessions ──────────────────────────────────────────────────────
	a.sessions = NewSessionManager(SessionManagerConfig{
		Definitions: a.defs,
		Sink:        a.sink,
		Settings:    cfg.Assessment.Settings(),
		MaxSessions: cfg.Server.MaxSessions,
		Metrics:     a.metrics,
	})
	a.checks = append(a.checks, health.Checker{Name: "sessions", Check: a.sessions.CheckCapacity})

	// ── 4. HTTP ──────────────────────────────────────────────────────────
	a.handler = a.buildRouter()

	return a, nil
}

// initSpeech builds the server-side provider chain when speech.mode is
// server.
func (a *App) initSpeech() error {
	if a.cfg.Speech.Mode != config.SpeechServer || a.speech != nil {
		return nil
	}
	b := a.cfg.Storage.Breaker
	chain := resilience.NewSTTFailover(resilience.BreakerConfig{
		MaxFailures:   b.MaxFailures,
		ResetTimeout:  b.ResetTimeout,
		OnStateChange: logStateChange("stt"),
	})
	for _, entry := range a.cfg.Speech.Providers {
		p, err := a.registry.CreateSTT(entry, a.cfg.Speech)
		if err != nil {
			return fmt.Errorf("create stt provider %q: %w", entry.Name, err)
		}
		chain.Add(entry.Name, p)
		slog.Info("provider created", "kind", "stt", "name", entry.Name)
	}
	if chain.Len() == 0 {
		return errors.New("speech.mode server without providers")
	}
	a.speech = chain
	return nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Reload applies the live-reloadable parts of a changed config. Sections
// that need a restart are only logged.
func (a *App) Reload(newCfg *config.Config, d config.ConfigDiff) {
	if d.MaxSessionsChanged {
		a.sessions.SetMaxSessions(d.NewMaxSessions)
		slog.Info("session cap updated", "max_sessions", d.NewMaxSessions)
	}
	if d.AssessmentChanged {
		a.sessions.UpdateSettings(newCfg.Assessment.Settings())
		slog.Info("assessment settings updated; running sessions keep their settings")
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "sections", d.RestartRequired)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run listens on server.listen_addr and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is cancelled. Request contexts derive
// from ctx, so cancelling it also ends running assessment sessions. When ctx
// is done, Serve returns context.Canceled (or the underlying cause).
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: serve: %w", err)
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown waits for running sessions to finish saving, then closes every
// store. It respects the context deadline: if ctx expires first, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "active_sessions", a.sessions.Count(), "closers", len(a.closers))

		if err := a.sessions.Wait(ctx); err != nil {
			slog.Warn("sessions still running at shutdown", "remaining", a.sessions.Count())
			shutdownErr = err
			return
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers registered so far; used when New fails midway.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error", "err", err)
		}
	}
	a.closers = nil
}

func logStateChange(kind string) func(name string, from, to resilience.State) {
	return func(name string, from, to resilience.State) {
		slog.Warn("circuit breaker state changed", "kind", kind, "name", name, "from", from, "to", to)
	}
}
