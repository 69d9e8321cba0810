// Command oralread runs the oral reading assessment server and its
// maintenance tools.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/oralread/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries the persistent flags and the shared log level.
type cli struct {
	configPath string
	logLevel   string
	level      slog.LevelVar
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "oralread",
		Short:         "Oral reading assessment server",
		Long:          "oralread administers spoken reading placement tests over a websocket and stores the placements.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.logLevel != "" {
				l := config.LogLevel(c.logLevel)
				if !l.IsValid() {
					return fmt.Errorf("--log-level %q is invalid; valid values: debug, info, warn, error", c.logLevel)
				}
				c.level.Set(slogLevel(l))
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: &c.level})))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "config.yaml", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(c),
		newReplayCmd(c),
		newValidateCmd(c),
		newImportCmd(c),
		newTokenCmd(c),
	)
	return root
}

// loadConfig reads the config file and applies its log level unless the
// --log-level flag overrides it.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.logLevel == "" {
		c.level.Set(slogLevel(cfg.Server.LogLevel))
	} else {
		cfg.Server.LogLevel = config.LogLevel(c.logLevel)
	}
	return cfg, nil
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
