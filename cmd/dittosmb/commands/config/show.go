package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/internal/cli/output"
	"github.com/marmos91/dittosmb/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display effective configuration",
	Long: `Display the effective dittosmb configuration: the file, DITTOSMB_*
environment overrides and defaults, merged the way 'dittosmb start' sees them.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show config as YAML
  dittosmb config show

  # Show as JSON
  dittosmb config show --output json

  # See the effect of an override
  DITTOSMB_SMB_PORT=445 dittosmb config show`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	// The JWT secret never leaves the file.
	if cfg.API.Auth.JWTSecret != "" {
		cfg.API.Auth.JWTSecret = "********"
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}
