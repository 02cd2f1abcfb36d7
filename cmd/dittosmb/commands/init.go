package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/internal/cli/prompt"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample dittosmb configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/dittosmb/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  dittosmb init

  # Initialize with custom path
  dittosmb init --config /etc/dittosmb/config.yaml

  # Force overwrite existing config
  dittosmb init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	force := initForce
	if _, err := os.Stat(configPath); err == nil && !force && logger.IsTerminal(os.Stdin) {
		ok, err := prompt.Confirm(fmt.Sprintf("%s already exists. Overwrite", configPath), false)
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				return nil
			}
			return err
		}
		if !ok {
			fmt.Println("Keeping existing configuration")
			return nil
		}
		force = true
	}

	if err := config.InitConfigToPath(configPath, force); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: dittosmb start")
	fmt.Printf("  3. Or specify custom config: dittosmb start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  The status API is unauthenticated by default. To require tokens, set")
	fmt.Println("  api.auth.enabled and provide the secret through the environment:")
	fmt.Printf("    export %s_API_AUTH_JWT_SECRET=$(openssl rand -hex 32)\n", config.EnvPrefix)

	return nil
}
