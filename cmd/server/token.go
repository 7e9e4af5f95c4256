package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bhuvesh-solnce/backend/pkg/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		identity auth.Identity
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity.ID <= 0 {
				return fmt.Errorf("--id must be a positive user id")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			token, err := auth.GenerateToken([]byte(cfg.Auth.JWTSecret), identity, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&identity.ID, "id", 0, "user id")
	cmd.Flags().StringVar(&identity.Name, "name", "", "display name")
	cmd.Flags().StringVar(&identity.Email, "email", "", "email address")
	cmd.Flags().StringVar(&identity.Role, "role", "", "role name matched against stage permissions")
	cmd.Flags().StringSliceVar(&identity.Capabilities, "capability", nil, "extra capabilities, e.g. workflow:override")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.token_ttl)")
	return cmd
}
