package app

import (
	"fmt"
	"os"

	"github.com/cth-oso/x328/internal/config"
)

// RunValidateConfig loads and validates a configuration file. kind selects
// the schema: "master" or "node".
func RunValidateConfig(configPath, kind string) error {
	switch kind {
	case "master":
		cfg, err := config.LoadMasterConfig(configPath, false)
		if err != nil {
			return err
		}
		if err := config.ValidateMasterConfig(cfg); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: valid controller config (%d targets, bridge %s)\n",
			configPath, len(cfg.Targets), cfg.Bridge.Address)
	case "node":
		cfg, err := config.LoadNodeConfig(configPath)
		if err != nil {
			return err
		}
		if err := config.ValidateNodeConfig(cfg); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: valid node config (station %d on %s)\n",
			configPath, cfg.Node.Station, cfg.Node.ListenAddress)
	default:
		return fmt.Errorf("unknown config kind %q, want master or node", kind)
	}
	return nil
}
