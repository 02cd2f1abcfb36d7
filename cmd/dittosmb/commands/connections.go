package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/internal/cli/output"
)

var connectionsCmd = &cobra.Command{
	Use:     "connections [id]",
	Aliases: []string{"conns"},
	Short:   "List open SMB connections",
	Long: `List the connections a running server currently holds, with the
handshake state each one reached. Pass a connection id to see its details.

Examples:
  # All open connections
  dittosmb connections

  # One connection as JSON
  dittosmb connections 3f1c9a2e-... -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConnections,
}

func runConnections(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	client := newAPIClient()

	if len(args) == 1 {
		info, err := client.Connection(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printer.Print(connectionView{*info})
	}

	conns, err := client.Connections(cmd.Context())
	if err != nil {
		return err
	}
	if len(conns) == 0 && printer.Format() == output.FormatTable {
		printer.Println("No open connections")
		return nil
	}
	return printer.Print(connectionsView{conns: conns, now: time.Now()})
}
