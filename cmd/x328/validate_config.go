package main

import (
	"github.com/spf13/cobra"

	"github.com/cth-oso/x328/internal/app"
)

func newValidateConfigCmd() *cobra.Command {
	var (
		configPath string
		kind       string
	)

	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Validate a configuration file",
		Example: `  # Check a controller config
  x328 validate-config --config x328_master.yaml

  # Check a node simulator config
  x328 validate-config --config x328_node.yaml --kind node`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if configPath == "" {
				return missingFlagError(cmd, "--config")
			}
			return app.RunValidateConfig(configPath, kind)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file to validate")
	cmd.Flags().StringVar(&kind, "kind", "master", "config schema: master or node")

	return cmd
}
