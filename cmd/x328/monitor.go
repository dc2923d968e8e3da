package main

import (
	"github.com/spf13/cobra"

	"github.com/cth-oso/x328/internal/app"
)

type monitorFlags struct {
	listenAddress string
	upstream      string
	configPath    string
	headless      bool
	logLevel      string
	logFormat     string
	logEvery      int
}

func newMonitorCmd() *cobra.Command {
	flags := &monitorFlags{}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Tap a bridge connection and watch the bus live",
		Long: `Insert a transparent TCP proxy between a controller and a serial
bridge. Traffic passes through unmodified while every transaction is
decoded and shown live; point the controller at the monitor's listen
address instead of the bridge.

With --config the controller config's mqtt section is honored and every
decoded transaction is also published to the broker.`,
		Example: `  # Tap a bridge on the standard port
  x328 monitor --listen :7032 --upstream 192.168.1.50:7032

  # Plain line output instead of the TUI
  x328 monitor --listen :7032 --upstream 192.168.1.50:7032 --headless

  # Publish decoded transactions to MQTT as well
  x328 monitor --listen :7032 --upstream 192.168.1.50:7032 --config x328_master.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.upstream == "" {
				return missingFlagError(cmd, "--upstream")
			}
			return app.RunMonitor(app.MonitorOptions{
				ListenAddress: flags.listenAddress,
				Upstream:      flags.upstream,
				ConfigPath:    flags.configPath,
				Headless:      flags.headless,
				LogLevel:      flags.logLevel,
				LogFormat:     flags.logFormat,
				LogEvery:      flags.logEvery,
			})
		},
	}

	cmd.Flags().StringVar(&flags.listenAddress, "listen", ":7032", "address to accept the controller on")
	cmd.Flags().StringVar(&flags.upstream, "upstream", "", "bridge address to forward to")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "controller config for MQTT forwarding")
	cmd.Flags().BoolVar(&flags.headless, "headless", false, "print events as plain lines instead of the TUI")
	registerLogFlags(cmd, &flags.logLevel, &flags.logFormat, &flags.logEvery)

	return cmd
}
