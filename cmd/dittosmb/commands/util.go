package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/internal/cli/output"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/apiclient"
	"github.com/marmos91/dittosmb/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// GetDefaultStateDir returns the directory for the PID and daemon log files.
func GetDefaultStateDir() string {
	if runtime.GOOS == "windows" {
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "dittosmb")
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "dittosmb")
		}
		return filepath.Join(homeDir, "AppData", "Local", "dittosmb")
	}

	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "dittosmb")
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "dittosmb")
}

// GetDefaultPidFile returns the default PID file path.
func GetDefaultPidFile() string {
	return filepath.Join(GetDefaultStateDir(), "dittosmb.pid")
}

// GetDefaultLogFile returns the default log file path for daemon mode.
func GetDefaultLogFile() string {
	return filepath.Join(GetDefaultStateDir(), "dittosmb.log")
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// newPrinter builds the printer for --output and --no-color.
func newPrinter(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(outputFmt)
	if err != nil {
		return nil, err
	}
	color := !noColor && logger.IsTerminal(os.Stdout)
	return output.NewPrinter(cmd.OutOrStdout(), format, color), nil
}

// newAPIClient targets --server, or the API address of the local
// configuration when the flag is not set.
func newAPIClient() *apiclient.Client {
	addr := serverURL
	if addr == "" {
		addr = "localhost:8080"
		if cfg, err := config.Load(GetConfigFile()); err == nil {
			host := cfg.API.BindAddress
			if host == "" || host == "0.0.0.0" || host == "::" {
				host = "localhost"
			}
			addr = host + ":" + strconv.Itoa(cfg.API.Port)
		}
	}

	client := apiclient.New(addr)
	if token != "" {
		client = client.WithToken(token)
	}
	return client
}
