package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/oralread/internal/assessment"
	"github.com/MrWong99/oralread/internal/config"
	"github.com/MrWong99/oralread/internal/health"
	"github.com/MrWong99/oralread/internal/resilience"
	"github.com/MrWong99/oralread/internal/store"
	"github.com/MrWong99/oralread/internal/store/file"
	"github.com/MrWong99/oralread/internal/store/postgres"
	"github.com/MrWong99/oralread/internal/store/sqlite"
)

// backend is one opened storage backend. Fields a backend cannot serve are
// nil.
type backend struct {
	defs    store.DefinitionSource
	sink    assessment.ResultSink
	results store.ResultReader
	ping    func(ctx context.Context) error
}

// initStorage opens every backend needed by a concern that was not
// injected, then assigns definitions, the result sink chain and the result
// reader.
func (a *App) initStorage(ctx context.Context) error {
	sc := a.cfg.Storage

	needed := map[config.Backend]bool{}
	if a.defs == nil {
		needed[sc.Definitions] = true
	}
	if a.sink == nil || a.results == nil {
		for _, b := range sc.Results {
			needed[b] = true
		}
	}

	opened := make(map[config.Backend]backend, len(needed))
	for _, name := range []config.Backend{config.BackendFile, config.BackendMemory, config.BackendSQLite, config.BackendPostgres} {
		if !needed[name] {
			continue
		}
		b, err := a.openBackend(ctx, name)
		if err != nil {
			return err
		}
		opened[name] = b
	}

	if a.defs == nil {
		b := opened[sc.Definitions]
		if b.defs == nil {
			return fmt.Errorf("backend %q cannot serve definitions", sc.Definitions)
		}
		a.defs = b.defs
	}

	if a.sink == nil && len(sc.Results) > 0 {
		chain := store.NewFailoverSink(resilience.BreakerConfig{
			MaxFailures:   sc.Breaker.MaxFailures,
			ResetTimeout:  sc.Breaker.ResetTimeout,
			OnStateChange: logStateChange("result_sink"),
		}, a.metrics)
		for _, name := range sc.Results {
			b := opened[name]
			if b.sink == nil {
				return fmt.Errorf("backend %q cannot store results", name)
			}
			chain.Add(string(name), b.sink)
		}
		a.sink = chain
	}
	if a.results == nil {
		for _, name := range sc.Results {
			if r := opened[name].results; r != nil {
				a.results = r
				break
			}
		}
	}

	// Backends serving definitions or the primary sink are critical; pure
	// fallbacks only degrade readiness.
	for name, b := range opened {
		if b.ping == nil {
			continue
		}
		critical := sc.Definitions == name || (len(sc.Results) > 0 && sc.Results[0] == name)
		a.checks = append(a.checks, health.Checker{Name: string(name), Check: b.ping, Optional: !critical})
	}
	return nil
}

func (a *App) openBackend(ctx context.Context, name config.Backend) (backend, error) {
	sc := a.cfg.Storage
	switch name {
	case config.BackendFile:
		fs, err := file.New(sc.DefinitionsDir)
		if err != nil {
			return backend{}, err
		}
		slog.Info("definition directory opened", "dir", sc.DefinitionsDir)
		return backend{defs: fs}, nil

	case config.BackendMemory:
		m := store.NewMemory()
		return backend{defs: m, sink: m, results: m}, nil

	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, sc.SQLitePath)
		if err != nil {
			return backend{}, err
		}
		a.closers = append(a.closers, s.Close)
		slog.Info("sqlite store opened", "path", sc.SQLitePath)
		return backend{defs: s, sink: s, results: s, ping: s.Ping}, nil

	case config.BackendPostgres:
		s, err := postgres.NewStore(ctx, sc.PostgresDSN)
		if err != nil {
			return backend{}, err
		}
		a.closers = append(a.closers, func() error {
			s.Close()
			return nil
		})
		slog.Info("postgres store opened")
		return backend{defs: s, sink: s, results: s, ping: s.Ping}, nil

	default:
		return backend{}, fmt.Errorf("unknown storage backend %q", name)
	}
}
