package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/internal/telemetry"
	"github.com/marmos91/dittosmb/pkg/adapter/smb"
	"github.com/marmos91/dittosmb/pkg/api"
	"github.com/marmos91/dittosmb/pkg/api/auth"
	"github.com/marmos91/dittosmb/pkg/config"
	"github.com/marmos91/dittosmb/pkg/history"
	"github.com/marmos91/dittosmb/pkg/metrics"
	"github.com/marmos91/dittosmb/pkg/metrics/prometheus"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the dittosmb server",
	Long: `Start the SMB1 handshake server with the specified configuration.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

A missing configuration file is not an error: defaults and DITTOSMB_*
environment variables are used instead.

Examples:
  # Start in background (default)
  dittosmb start

  # Start in foreground
  dittosmb start --foreground

  # Start with custom config file
  dittosmb start --config /etc/dittosmb/config.yaml

  # Start with environment variable overrides
  DITTOSMB_LOGGING_LEVEL=DEBUG DITTOSMB_SMB_PORT=1445 dittosmb start -f`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/dittosmb/dittosmb.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/dittosmb/dittosmb.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "dittosmb",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "dittosmb",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	fmt.Println("dittosmb - SMB1 handshake server")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	if !cfg.SMB.Enabled && !cfg.API.IsEnabled() {
		return errors.New("nothing to run: both smb and api are disabled")
	}

	srv, err := newServer(cfg)
	if err != nil {
		return err
	}
	defer srv.close()

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := srv.run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
	case err := <-serverDone:
		// One component exiting takes the others down with it.
		srv.running--
		if err != nil {
			logger.Error("Server error", logger.Err(err))
			cancel()
			srv.wait(cfg.ShutdownTimeout)
			return err
		}
		logger.Info("Server component stopped, shutting down")
	}

	cancel()
	if !srv.wait(cfg.ShutdownTimeout) {
		logger.Warn("Shutdown timed out", "timeout", cfg.ShutdownTimeout)
		return fmt.Errorf("shutdown did not finish within %s", cfg.ShutdownTimeout)
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// server is everything `start` runs: the SMB listener, the status API and
// the history journal shared between them.
type server struct {
	smb     *smb.Adapter
	api     *api.Server
	journal *history.Store

	done    chan error
	running int
}

func newServer(cfg *config.Config) (*server, error) {
	s := &server{}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "path", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History)
		if err != nil {
			return nil, fmt.Errorf("failed to open connection history: %w", err)
		}
		s.journal = store
		logger.Info("Connection history enabled", "path", cfg.History.Path, "in_memory", cfg.History.InMemory, "retention", cfg.History.Retention)
	}

	if cfg.SMB.Enabled {
		s.smb = smb.New(cfg.SMB)
		s.smb.SetMetrics(prometheus.NewSMBMetrics())
		if s.journal != nil {
			s.smb.SetJournal(s.journal)
		}
	}

	if cfg.API.IsEnabled() {
		deps := api.Dependencies{Ready: s.ready}
		if s.smb != nil {
			deps.Connections = s.smb
		}
		if s.journal != nil {
			deps.History = s.journal
		}
		if cfg.API.Auth.Enabled {
			jwtService, err := auth.NewJWTService(auth.JWTConfig{
				Secret:        cfg.API.Auth.JWTSecret,
				Issuer:        cfg.API.Auth.Issuer,
				TokenDuration: cfg.API.Auth.TokenDuration,
			})
			if err != nil {
				s.close()
				return nil, fmt.Errorf("failed to initialize API authentication: %w", err)
			}
			deps.JWT = jwtService
		}
		s.api = api.NewServer(cfg.API, deps)
		logger.Info("API server configured", "port", cfg.API.Port, "auth", cfg.API.Auth.Enabled)
	}

	return s, nil
}

// ready backs /health/ready. An API-only process has no listener to wait on.
func (s *server) ready() error {
	if s.smb == nil {
		return nil
	}
	return s.smb.Ready()
}

// run starts every component and returns a channel that receives each
// component's exit error.
func (s *server) run(ctx context.Context) <-chan error {
	s.done = make(chan error, 2)
	if s.smb != nil {
		s.running++
		go func() { s.done <- s.smb.Serve(ctx) }()
	}
	if s.api != nil {
		s.running++
		go func() { s.done <- s.api.Start(ctx) }()
	}
	return s.done
}

// wait collects the remaining components after ctx was cancelled. It
// reports false if they did not all return within timeout.
func (s *server) wait(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for ; s.running > 0; s.running-- {
		select {
		case err := <-s.done:
			if err != nil {
				logger.Error("Component shutdown error", logger.Err(err))
			}
		case <-deadline:
			return false
		}
	}
	return true
}

func (s *server) close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			logger.Error("Failed to close connection history", logger.Err(err))
		}
	}
}
