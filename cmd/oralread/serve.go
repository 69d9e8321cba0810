package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/oralread/internal/app"
	"github.com/MrWong99/oralread/internal/config"
	"github.com/MrWong99/oralread/internal/observe"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the assessment server",
		Long: "Run the HTTP and websocket server. The config file is watched; log level, " +
			"session cap and assessment settings apply without a restart.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(parent context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	slog.Info("oralread starting",
		"version", version,
		"config", c.configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"speech_mode", cfg.Speech.Mode,
		"definitions", cfg.Storage.Definitions,
		"results", cfg.Storage.Results,
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := observe.Init(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: version,
		SpeechMode:     string(cfg.Speech.Mode),
		SampleRatio:    cfg.Observability.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	application, err := app.New(ctx, cfg, app.WithRegistry(reg))
	if err != nil {
		return err
	}

	watcher, err := config.NewWatcher(c.configPath, func(_, newCfg *config.Config, d config.ConfigDiff) {
		if d.LogLevelChanged && c.logLevel == "" {
			c.level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		application.Reload(newCfg, d)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
		go reloadOnHangup(ctx, watcher)
	}

	slog.Info("server ready, press Ctrl+C to shut down")
	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	slog.Info("shutdown signal received, stopping")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	slog.Info("goodbye")
	return nil
}

// reloadOnHangup re-reads the config on SIGHUP instead of waiting for the
// next poll.
func reloadOnHangup(ctx context.Context, w *config.Watcher) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if !w.Check() {
				slog.Info("SIGHUP: config unchanged or invalid")
			}
		}
	}
}
