package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/oralread/internal/config"
	"github.com/MrWong99/oralread/internal/store/file"
)

func newValidateCmd(c *cli) *cobra.Command {
	var skipConfig bool
	cmd := &cobra.Command{
		Use:   "validate [definition files...]",
		Short: "Check the config file and test definitions",
		Long: "Validate loads --config and every definition file given. Without arguments it checks " +
			"the definitions directory when the file backend is configured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			paths := args
			if !skipConfig {
				cfg, err := c.loadConfig()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "ok   %s\n", c.configPath)
				if len(paths) == 0 && cfg.Storage.Definitions == config.BackendFile {
					fs, err := file.New(cfg.Storage.DefinitionsDir)
					if err != nil {
						return err
					}
					if paths, err = fs.Paths(); err != nil {
						return err
					}
				}
			}

			var errs []error
			for _, p := range paths {
				t, err := file.Load(p)
				if err != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", p, err)
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(out, "ok   %s (id %q, %d stages)\n", p, t.ID, len(t.Stages))
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d of %d definitions invalid: %w", len(errs), len(paths), errors.Join(errs...))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipConfig, "skip-config", false, "only check the definition files given as arguments")
	return cmd
}
