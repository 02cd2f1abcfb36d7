package config

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/pkg/config"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open configuration in editor",
	Long: `Open the configuration file in your editor ($VISUAL, then $EDITOR,
then vi) and validate it once the editor exits.

Examples:
  # Edit default config
  dittosmb config edit

  # Edit specific config file
  dittosmb config edit --config /etc/dittosmb/config.yaml`,
	RunE: runConfigEdit,
}

func editor() string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if e := os.Getenv(env); e != "" {
			return e
		}
	}
	return "vi"
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("configuration file not found: %s\n\n"+
			"Create it first with:\n"+
			"  dittosmb init --config %s",
			configPath, configPath)
	}

	editorCmd := exec.Command(editor(), configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("failed to run editor: %w", err)
	}

	if _, err := config.Load(configPath); err != nil {
		return fmt.Errorf("%s was saved but is not valid: %w", configPath, err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration %s is valid\n", configPath)
	return nil
}
