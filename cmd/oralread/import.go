package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/oralread/internal/config"
	"github.com/MrWong99/oralread/internal/store"
	"github.com/MrWong99/oralread/internal/store/file"
	"github.com/MrWong99/oralread/internal/store/postgres"
	"github.com/MrWong99/oralread/internal/store/sqlite"
)

// importConcurrency bounds parallel upserts.
const importConcurrency = 4

func newImportCmd(c *cli) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "import <definition files...>",
		Short: "Upsert test definitions into the database",
		Long: "Import parses and validates each definition file and writes it to the postgres or sqlite " +
			"store. The target defaults to storage.definitions.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			backend := cfg.Storage.Definitions
			if target != "" {
				backend = config.Backend(target)
			}
			w, closeFn, err := openDefinitionWriter(cmd.Context(), cfg.Storage, backend)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := importDefinitions(cmd.Context(), w, args)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d definitions into %s\n", n, len(args), backend)
			return err
		},
	}
	cmd.Flags().StringVar(&target, "to", "", "target backend (postgres or sqlite)")
	return cmd
}

// openDefinitionWriter opens a writable definition store.
func openDefinitionWriter(ctx context.Context, sc config.StorageConfig, b config.Backend) (store.DefinitionWriter, func(), error) {
	switch b {
	case config.BackendPostgres:
		if sc.PostgresDSN == "" {
			return nil, nil, errors.New("storage.postgres_dsn is required to import into postgres")
		}
		s, err := postgres.NewStore(ctx, sc.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendSQLite:
		if sc.SQLitePath == "" {
			return nil, nil, errors.New("storage.sqlite_path is required to import into sqlite")
		}
		s, err := sqlite.Open(ctx, sc.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				slog.Warn("sqlite close error", "err", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("cannot import into %q; choose postgres or sqlite with --to", b)
	}
}

// importDefinitions loads and upserts every path. All files are attempted;
// the returned error joins the failures.
func importDefinitions(ctx context.Context, w store.DefinitionWriter, paths []string) (int, error) {
	var (
		imported atomic.Int64
		errs     = make([]error, len(paths))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(importConcurrency)
	for i, p := range paths {
		g.Go(func() error {
			t, err := file.Load(p)
			if err != nil {
				errs[i] = err
				return nil
			}
			if err := w.PutDefinition(gctx, t); err != nil {
				errs[i] = fmt.Errorf("%s: %w", p, err)
				return nil
			}
			imported.Add(1)
			slog.Info("definition imported", "id", t.ID, "path", p)
			return nil
		})
	}
	_ = g.Wait()
	return int(imported.Load()), errors.Join(errs...)
}
