package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cth-oso/x328/internal/app"
	"github.com/cth-oso/x328/internal/config"
)

type nodeFlags struct {
	configPath    string
	listenAddress string
	station       int
	profile       string
	logLevel      string
	logFormat     string
	logEvery      int
}

func newNodeCmd() *cobra.Command {
	flags := &nodeFlags{}

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run the node simulator",
		Long: `Serve a simulated X3.28 node over TCP so controllers can be exercised
without hardware.

Registers come from the config file and the optional built-in profile;
station 0 answers commands for every address on the bus.`,
		Example: `  # Serve the registers from x328_node.yaml
  x328 node

  # Vacuum pump register layout on station 43
  x328 node --station 43 --profile pump

  # Answer every station
  x328 node --station 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return app.RunNode(app.NodeOptions{
				ConfigPath:    flags.configPath,
				ListenAddress: flags.listenAddress,
				Station:       flags.station,
				Profile:       flags.profile,
				LogLevel:      flags.logLevel,
				LogFormat:     flags.logFormat,
				LogEvery:      flags.logEvery,
			})
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "x328_node.yaml", "node config file")
	cmd.Flags().StringVar(&flags.listenAddress, "listen", "", "listen address, overrides the config")
	cmd.Flags().IntVar(&flags.station, "station", -1, "station address, overrides the config")
	cmd.Flags().StringVar(&flags.profile, "profile", "", "built-in register profile")
	registerLogFlags(cmd, &flags.logLevel, &flags.logFormat, &flags.logEvery)

	cmd.AddCommand(newNodeProfilesCmd())

	return cmd
}

func newNodeProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List built-in register profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles := config.RegisterProfiles()
			fmt.Fprintln(os.Stdout, "Available profiles:")
			for _, name := range config.ProfileNames() {
				fmt.Fprintf(os.Stdout, "  %-10s %d registers\n", name, len(profiles[name]))
			}
			return nil
		},
	}
}
