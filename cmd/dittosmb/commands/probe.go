package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittosmb/internal/adapter/smb/client"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/cli/output"
)

var (
	probeAccount    string
	probeDomain     string
	probePath       string
	probeService    string
	probeEcho       string
	probeASCII      bool
	probeKeepAlives int
	probeInterval   time.Duration
	probeTimeout    time.Duration
)

var probeCmd = &cobra.Command{
	Use:   "probe <host:port>",
	Short: "Run the SMB1 handshake against a server",
	Long: `Connect to an SMB1 server and run NEGOTIATE, SESSION_SETUP_ANDX,
TREE_CONNECT_ANDX and ECHO, reporting what the server answered and how long
each step took.

The command fails if any step fails. Use --keepalives to send extra ECHO
requests after the handshake, the way an idle client keeps its session open.

Examples:
  # Probe a local dittosmb server
  dittosmb probe localhost:12445

  # Probe with a specific account and share
  dittosmb probe fileserver:445 --account alice --path '\\fileserver\docs'

  # Keep the session alive for a minute
  dittosmb probe localhost:12445 --keepalives 6 --interval 10s

  # Machine-readable report
  dittosmb probe localhost:12445 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	def := client.DefaultConfig()
	probeCmd.Flags().StringVar(&probeAccount, "account", def.Account, "Account name sent in SESSION_SETUP_ANDX")
	probeCmd.Flags().StringVar(&probeDomain, "domain", def.Domain, "Primary domain sent in SESSION_SETUP_ANDX")
	probeCmd.Flags().StringVar(&probePath, "path", def.Path, "UNC path for TREE_CONNECT_ANDX")
	probeCmd.Flags().StringVar(&probeService, "service", def.Service, "Service type for TREE_CONNECT_ANDX")
	probeCmd.Flags().StringVar(&probeEcho, "echo", "dittosmb", "ECHO payload")
	probeCmd.Flags().BoolVar(&probeASCII, "ascii", false, "Send OEM strings instead of Unicode")
	probeCmd.Flags().IntVar(&probeKeepAlives, "keepalives", 0, "Extra ECHO requests after the handshake")
	probeCmd.Flags().DurationVar(&probeInterval, "interval", time.Second, "Delay between keep-alive ECHOs")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 30*time.Second, "Overall probe timeout")
}

func runProbe(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	cfg := client.DefaultConfig()
	cfg.Unicode = !probeASCII
	if probeASCII {
		cfg.Capabilities &^= types.CapUnicode
	}
	cfg.Account = probeAccount
	cfg.Domain = probeDomain
	cfg.Path = probePath
	cfg.Service = probeService

	ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout+time.Duration(probeKeepAlives)*probeInterval)
	defer cancel()

	c, err := client.Dial(ctx, args[0], cfg)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	report, probeErr := client.Probe(ctx, c, client.ProbeOptions{
		EchoData:          []byte(probeEcho),
		KeepAlives:        probeKeepAlives,
		KeepAliveInterval: probeInterval,
	})
	if report != nil {
		if err := printer.Print(reportView{report}); err != nil {
			return err
		}
		if printer.Format() == output.FormatTable {
			printer.Println()
			if err := printer.Print(stepsView(report.Steps)); err != nil {
				return err
			}
		}
	}
	if probeErr != nil {
		return fmt.Errorf("handshake failed: %w", probeErr)
	}

	printer.Success(fmt.Sprintf("Handshake complete with %s", report.Address))
	return nil
}
