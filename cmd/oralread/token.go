package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/oralread/internal/auth"
)

func newTokenCmd(c *cli) *cobra.Command {
	var (
		roles []string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a signed access token for development",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			parsed := make([]auth.Role, 0, len(roles))
			for _, r := range roles {
				role := auth.Role(r)
				if !role.Valid() {
					return fmt.Errorf("unknown role %q; valid roles: student, teacher, admin", r)
				}
				parsed = append(parsed, role)
			}
			if ttl == 0 {
				ttl = cfg.Auth.TokenTTL
			}
			signer, err := auth.NewSigner([]byte(cfg.Auth.Secret), cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			tok, err := signer.Sign(args[0], ttl, parsed...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&roles, "role", []string{string(auth.RoleStudent)}, "roles to grant (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	return cmd
}
