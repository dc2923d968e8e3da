package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cth-oso/x328/internal/bridge"
	"github.com/cth-oso/x328/internal/config"
	"github.com/cth-oso/x328/internal/registers"
)

// NodeOptions configures the node simulator command.
type NodeOptions struct {
	ConfigPath    string
	ListenAddress string
	Station       int // -1 keeps the config value
	Profile       string

	LogLevel  string
	LogFormat string
	LogEvery  int
}

// RunNode starts the node simulator and blocks until SIGINT/SIGTERM.
func RunNode(opts NodeOptions) error {
	cfg, err := config.LoadNodeConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.ListenAddress != "" {
		cfg.Node.ListenAddress = opts.ListenAddress
	}
	if opts.Station >= 0 {
		cfg.Node.Station = opts.Station
	}
	if opts.Profile != "" {
		cfg.Node.Profile = opts.Profile
	}
	if err := config.ValidateNodeConfig(cfg); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, opts.LogLevel, opts.LogFormat, opts.LogEvery)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	logger.LogStartup("node", cfg.Node.ListenAddress, cfg.Node.Station, opts.ConfigPath)

	server, err := bridge.NewNodeServer(cfg, store, logger)
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return fmt.Errorf("start node server: %w", err)
	}

	fwd, err := startForwarder(cfg.MQTT, logger)
	if err != nil {
		logger.Error("MQTT forwarder disabled: %v", err)
	}
	done := make(chan struct{})
	if fwd != nil {
		go forwardEvents(fwd, server.Events(), done, logger)
	}

	fmt.Fprintf(os.Stdout, "Node %d serving on %s (%d registers). Press Ctrl+C to stop.\n",
		cfg.Node.Station, server.Addr(), store.Len())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintln(os.Stdout, "\nShutting down node...")
	close(done)
	if fwd != nil {
		fwd.Close()
	}
	return server.Stop()
}

// buildStore seeds a register store from the configured profile, with
// explicit register entries layered on top.
func buildStore(cfg *config.NodeConfig) (*registers.Store, error) {
	var seeds []config.RegisterSeed
	if cfg.Node.Profile != "" {
		seeds = append(seeds, config.RegisterProfiles()[cfg.Node.Profile]...)
	}
	seeds = append(seeds, cfg.Registers...)
	store, err := registers.FromSeeds(seeds)
	if err != nil {
		return nil, fmt.Errorf("seed registers: %w", err)
	}
	return store, nil
}
