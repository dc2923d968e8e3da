package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cth-oso/x328/internal/bridge"
	"github.com/cth-oso/x328/internal/config"
	"github.com/cth-oso/x328/internal/tui"
)

// MonitorOptions configures the bus monitor proxy.
type MonitorOptions struct {
	ListenAddress string
	Upstream      string
	ConfigPath    string // optional controller config, for MQTT forwarding
	Headless      bool

	LogLevel  string
	LogFormat string
	LogEvery  int
}

// RunMonitor inserts a transparent tap between a controller and a bridge
// and shows the decoded transactions, in a TUI or as plain lines.
func RunMonitor(opts MonitorOptions) error {
	var mqtt config.MQTTConfig
	logCfg := config.LoggingConfig{Level: "error"}
	if opts.ConfigPath != "" {
		cfg, err := config.LoadMasterConfig(opts.ConfigPath, false)
		if err != nil {
			return err
		}
		mqtt = cfg.MQTT
		logCfg = cfg.Logging
	}

	logger, err := newLogger(logCfg, opts.LogLevel, opts.LogFormat, opts.LogEvery)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	tap := bridge.NewTap(opts.ListenAddress, opts.Upstream, logger)
	if err := tap.Start(); err != nil {
		return fmt.Errorf("start tap: %w", err)
	}
	defer tap.Stop()

	fwd, err := startForwarder(mqtt, logger)
	if err != nil {
		logger.Error("MQTT forwarder disabled: %v", err)
	}
	if fwd != nil {
		defer fwd.Close()
	}

	done := make(chan struct{})
	defer close(done)

	// fan tap events out to the view and, when enabled, to MQTT
	view := make(chan bridge.TapEvent, 256)
	go func() {
		for {
			select {
			case <-done:
				return
			case ev := <-tap.Events():
				select {
				case view <- ev:
				default:
				}
				if fwd != nil {
					if err := fwd.Publish(busEvent(ev)); err != nil {
						logger.Error("MQTT publish: %v", err)
					}
				}
			}
		}
	}()

	if opts.Headless {
		return runHeadless(view, tap)
	}
	return tui.Run(view)
}

// runHeadless prints events as plain lines until SIGINT/SIGTERM.
func runHeadless(view <-chan bridge.TapEvent, tap *bridge.Tap) error {
	fmt.Fprintf(os.Stdout, "Monitoring on %s. Press Ctrl+C to stop.\n", tap.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stdout, "\nStopping.")
			return nil
		case ev := <-view:
			line := fmt.Sprintf("%s  %-7s station %2d parameter %04d",
				ev.Time.Format("15:04:05.000"), ev.Kind, ev.Station, ev.Parameter)
			if ev.Value != nil {
				line += fmt.Sprintf(" = %d", *ev.Value)
			}
			if ev.Err != "" {
				line += "  (" + ev.Err + ")"
			}
			fmt.Fprintln(os.Stdout, line)
		}
	}
}
