package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/pkg/api/auth"
	"github.com/marmos91/dittosmb/pkg/config"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a status API token",
	Long: `Sign a bearer token for the status API with the secret in the local
configuration (api.auth.jwt_secret).

Only the token is printed, so it can be captured directly.

Examples:
  # Token valid for the configured api.auth.token_duration
  export DITTOSMB_TOKEN=$(dittosmb token)

  # Short-lived token for a monitoring job
  dittosmb token --subject prometheus --ttl 1h`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default: api.auth.token_duration)")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if cfg.API.Auth.JWTSecret == "" {
		return errors.New("api.auth.jwt_secret is not configured")
	}

	svc, err := auth.NewJWTService(auth.JWTConfig{
		Secret:        cfg.API.Auth.JWTSecret,
		Issuer:        cfg.API.Auth.Issuer,
		TokenDuration: cfg.API.Auth.TokenDuration,
	})
	if err != nil {
		return err
	}

	tok, expires, err := svc.GenerateToken(tokenSubject, tokenTTL)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), tok)
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
	return nil
}
