// Package commands implements the dittosmb CLI: running the SMB1 handshake
// server, probing servers, and reading the status API.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/cmd/dittosmb/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile   string
	serverURL string
	token     string
	outputFmt string
	noColor   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dittosmb",
	Short: "dittosmb - SMB1 handshake server",
	Long: `dittosmb accepts SMB1 (NT LM 0.12) clients over TCP and drives each one
through NEGOTIATE, SESSION_SETUP_ANDX, TREE_CONNECT_ANDX and ECHO, then keeps
the connection alive by answering ECHO.

Server commands read the configuration file (see 'dittosmb init'). The
status, connections and history commands query a running server's status
API instead.

Use "dittosmb [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/dittosmb/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "status API address (default: from config, else localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("DITTOSMB_TOKEN"), "status API bearer token (env DITTOSMB_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(connectionsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
