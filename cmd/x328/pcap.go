package main

import (
	"github.com/spf13/cobra"

	"github.com/cth-oso/x328/internal/app"
	"github.com/cth-oso/x328/internal/pcapx"
)

type pcapFlags struct {
	file       string
	bridgePort int
	verbose    bool
}

func newPcapCmd() *cobra.Command {
	flags := &pcapFlags{}

	cmd := &cobra.Command{
		Use:   "pcap",
		Short: "Analyze X3.28 traffic in a capture file",
		Long: `Reassemble the serial-bridge TCP conversations in a capture file and
decode the X3.28 transactions they carry. Prints a per-station summary,
and each transaction with --verbose.`,
		Example: `  # Summarize a capture
  x328 pcap --file bus.pcap

  # Bridges on a non-standard port, with every transaction printed
  x328 pcap --file bus.pcap --port 4001 --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.file == "" {
				return missingFlagError(cmd, "--file")
			}
			return app.RunPCAP(app.PCAPOptions{
				File:       flags.file,
				BridgePort: flags.bridgePort,
				Verbose:    flags.verbose,
			})
		},
	}

	cmd.Flags().StringVar(&flags.file, "file", "", "capture file to analyze")
	cmd.Flags().IntVar(&flags.bridgePort, "port", pcapx.DefaultBridgePort, "TCP port the serial bridges listen on")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "print every decoded transaction")

	return cmd
}
