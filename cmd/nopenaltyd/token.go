package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	auth "github.com/mind-engage/nopenaltycalc/internal/auth/middleware"
)

func tokenCmd() *cobra.Command {
	var sub, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with the configured secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sub == "" {
				return errors.New("--sub is required")
			}
			switch role {
			case "student", "teacher", "admin":
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tok, err := auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL).IssueJWT(sub, role)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "host user id the token is issued for")
	cmd.Flags().StringVar(&role, "role", "student", "student, teacher or admin")
	return cmd
}
