package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/internal/cli/output"
	"github.com/marmos91/dittosmb/internal/cli/timeutil"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Query a running server's status API for liveness, readiness and the
number of open SMB connections.

Examples:
  # Local server
  dittosmb status

  # Remote server with authentication
  dittosmb status --server smb1.example.com:8080 --token $DITTOSMB_TOKEN`,
	RunE: runStatus,
}

type serverStatus struct {
	Server      string `json:"server" yaml:"server"`
	Service     string `json:"service" yaml:"service"`
	Uptime      string `json:"uptime" yaml:"uptime"`
	Ready       bool   `json:"ready" yaml:"ready"`
	Reason      string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Connections *int   `json:"connections,omitempty" yaml:"connections,omitempty"`
}

func (s serverStatus) KeyValues() [][2]string {
	ready := "yes"
	if !s.Ready {
		ready = "no"
	}
	kv := [][2]string{
		{"Server", s.Server},
		{"Service", s.Service},
		{"Uptime", timeutil.FormatUptime(s.Uptime)},
		{"Ready", ready},
		{"Reason", s.Reason},
	}
	if s.Connections != nil {
		kv = append(kv, [2]string{"Connections", strconv.Itoa(*s.Connections)})
	}
	return kv
}

func runStatus(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	client := newAPIClient()
	ctx := cmd.Context()

	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("server at %s is not reachable: %w", client.BaseURL(), err)
	}

	st := serverStatus{
		Server:  client.BaseURL(),
		Service: health.Service,
		Uptime:  health.Uptime,
		Ready:   true,
	}
	if err := client.Ready(ctx); err != nil {
		st.Ready = false
		st.Reason = err.Error()
	}

	// The connection registry needs a token when auth is on and is absent
	// when SMB is disabled; status still reports the rest.
	if conns, err := client.Connections(ctx); err == nil {
		n := len(conns)
		st.Connections = &n
	}

	if err := printer.Print(st); err != nil {
		return err
	}
	if printer.Format() == output.FormatTable && !st.Ready {
		printer.Warning("server is not ready")
	}
	return nil
}
