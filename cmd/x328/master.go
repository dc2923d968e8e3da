package main

import (
	"github.com/spf13/cobra"

	"github.com/cth-oso/x328/internal/app"
)

type masterFlags struct {
	configPath  string
	address     string
	station     int
	parameter   int
	value       int
	wide        bool
	interactive bool
	logLevel    string
	logFormat   string
	logEvery    int
}

func newMasterCmd() *cobra.Command {
	flags := &masterFlags{}

	cmd := &cobra.Command{
		Use:   "master",
		Short: "Run the bus controller",
		Long: `Drive an X3.28 bus as the controller, through a TCP serial bridge.

Without --station/--parameter the targets from the config file are polled
continuously until Ctrl+C. With --station and --parameter a single read is
performed, or a single write when --value is also given. With --interactive
an on-screen form prompts for transactions.`,
		Example: `  # Poll the targets from x328_master.yaml
  x328 master

  # One-shot read of parameter 302 on station 43
  x328 master --station 43 --parameter 302

  # One-shot write
  x328 master --station 43 --parameter 707 --value 1500

  # Prompt for transactions
  x328 master --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			opts := app.MasterOptions{
				ConfigPath:  flags.configPath,
				Address:     flags.address,
				Station:     flags.station,
				Parameter:   flags.parameter,
				Wide:        flags.wide,
				Interactive: flags.interactive,
				LogLevel:    flags.logLevel,
				LogFormat:   flags.logFormat,
				LogEvery:    flags.logEvery,
			}
			if cmd.Flags().Changed("value") {
				opts.Value = &flags.value
			}
			return app.RunMaster(opts)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "x328_master.yaml", "controller config file")
	cmd.Flags().StringVar(&flags.address, "address", "", "bridge address, overrides the config")
	cmd.Flags().IntVar(&flags.station, "station", -1, "station address for a one-shot transaction")
	cmd.Flags().IntVar(&flags.parameter, "parameter", -1, "parameter for a one-shot transaction")
	cmd.Flags().IntVar(&flags.value, "value", 0, "value to write; omit for a read")
	cmd.Flags().BoolVar(&flags.wide, "wide", false, "use the six-character value format for writes")
	cmd.Flags().BoolVar(&flags.interactive, "interactive", false, "prompt for transactions")
	registerLogFlags(cmd, &flags.logLevel, &flags.logFormat, &flags.logEvery)

	return cmd
}
