package config

import (
	"fmt"
	"io"
	"net"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the dittosmb configuration file.

Checks for syntax errors, missing required fields, and invalid values, then
warns about settings that are valid but probably not intended.

Examples:
  # Validate default config
  dittosmb config validate

  # Validate specific config file
  dittosmb config validate --config /etc/dittosmb/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	printValidation(cmd.OutOrStdout(), displayPath, cfg)
	return nil
}

func printValidation(w io.Writer, path string, cfg *config.Config) {
	warnings := configWarnings(cfg)

	_, _ = fmt.Fprintf(w, "Configuration file: %s\n", path)
	_, _ = fmt.Fprintln(w, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range warnings {
			_, _ = fmt.Fprintf(w, "  - %s\n", warning)
		}
	}

	_, _ = fmt.Fprintf(w, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(w, "  SMB:             %s\n", enabled(cfg.SMB.Enabled, fmt.Sprintf("port %d", cfg.SMB.Port)))
	_, _ = fmt.Fprintf(w, "  API:             %s\n", enabled(cfg.API.IsEnabled(), fmt.Sprintf("port %d", cfg.API.Port)))
	_, _ = fmt.Fprintf(w, "  History:         %s\n", enabled(cfg.History.Enabled, historyLocation(cfg)))
	_, _ = fmt.Fprintf(w, "  Log level:       %s\n", cfg.Logging.Level)
}

// configWarnings flags settings that pass validation but are likely
// mistakes.
func configWarnings(cfg *config.Config) []string {
	var warnings []string

	if !cfg.SMB.Enabled {
		warnings = append(warnings, "SMB listener disabled - the server only serves the status API")
	}
	if cfg.API.IsEnabled() && !cfg.API.Auth.Enabled && !isLoopback(cfg.API.BindAddress) {
		warnings = append(warnings, "status API is reachable beyond localhost without authentication")
	}
	if cfg.History.Enabled && cfg.History.InMemory {
		warnings = append(warnings, "connection history is in memory and lost on restart")
	}
	if cfg.SMB.MaxConnections == 0 {
		warnings = append(warnings, "smb.max_connections is 0 - connections are unlimited")
	}

	return warnings
}

func isLoopback(addr string) bool {
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}

func enabled(on bool, detail string) string {
	if !on {
		return "disabled"
	}
	return "enabled (" + detail + ")"
}

func historyLocation(cfg *config.Config) string {
	if cfg.History.InMemory {
		return "in memory"
	}
	return cfg.History.Path
}
