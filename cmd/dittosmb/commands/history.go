package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/internal/cli/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show closed connections",
	Long: `Show the journal of connections a running server has closed, newest
first, with how far each got through the handshake. Pass a connection id to
see its full record.

Examples:
  # Last 100 connections
  dittosmb history

  # Last 10 connections
  dittosmb history --limit 10

  # One record as YAML
  dittosmb history 3f1c9a2e-... -o yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Maximum number of entries (default: server limit)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	client := newAPIClient()

	if len(args) == 1 {
		e, err := client.HistoryEntry(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printer.Print(historyEntryView{e})
	}

	entries, err := client.History(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 && printer.Format() == output.FormatTable {
		printer.Println("No closed connections recorded")
		return nil
	}
	return printer.Print(historyView(entries))
}
