package main

import (
	"github.com/spf13/cobra"

	"github.com/cth-oso/x328/internal/app"
)

type scanFlags struct {
	address   string
	parameter int
	from      int
	to        int
	timeoutMs int
	logLevel  string
}

func newScanCmd() *cobra.Command {
	flags := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Probe a bus for live stations",
		Long: `Sweep a station address range with single reads and report which
stations answer. A NAK or EOT response still counts as alive: the node
rejected the parameter but proved it is listening.`,
		Example: `  # Scan all stations behind a bridge
  x328 scan --address 192.168.1.50:7032

  # Narrow sweep with a device-specific parameter
  x328 scan --address 192.168.1.50:7032 --from 40 --to 50 --parameter 309`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.address == "" {
				return missingFlagError(cmd, "--address")
			}
			return app.RunScan(app.ScanOptions{
				Address:   flags.address,
				Parameter: flags.parameter,
				From:      flags.from,
				To:        flags.to,
				TimeoutMs: flags.timeoutMs,
				LogLevel:  flags.logLevel,
			})
		},
	}

	cmd.Flags().StringVar(&flags.address, "address", "", "bridge address to scan through")
	cmd.Flags().IntVar(&flags.parameter, "parameter", 0, "parameter to read from each station")
	cmd.Flags().IntVar(&flags.from, "from", 1, "first station address")
	cmd.Flags().IntVar(&flags.to, "to", 99, "last station address")
	cmd.Flags().IntVar(&flags.timeoutMs, "timeout", 200, "per-station response timeout in milliseconds")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "error", "log level (silent, error, info, verbose, debug)")

	return cmd
}
