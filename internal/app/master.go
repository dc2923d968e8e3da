package app

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/cth-oso/x328/internal/bridge"
	"github.com/cth-oso/x328/internal/config"
	"github.com/cth-oso/x328/internal/errors"
	"github.com/cth-oso/x328/internal/logging"
	"github.com/cth-oso/x328/internal/mqttfwd"
	"github.com/cth-oso/x328/internal/x328/protocol"
)

// MasterOptions configures the bus-controller command.
type MasterOptions struct {
	ConfigPath string
	Address    string // overrides the bridge address

	// one-shot transaction; Station/Parameter < 0 means poll the
	// configured targets instead
	Station   int
	Parameter int
	Value     *int
	Wide      bool

	Interactive bool

	LogLevel  string
	LogFormat string
	LogEvery  int
}

// pollInterval is the base delay between target poll cycles; the
// configured jitter is added on top.
const pollInterval = 1 * time.Second

// RunMaster connects to the bridge and either runs one transaction, polls
// the configured targets, or prompts interactively.
func RunMaster(opts MasterOptions) error {
	cfg, err := config.LoadMasterConfig(opts.ConfigPath, true)
	if err != nil {
		return err
	}
	if opts.Address != "" {
		cfg.Bridge.Address = opts.Address
	}
	if err := config.ValidateMasterConfig(cfg); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, opts.LogLevel, opts.LogFormat, opts.LogEvery)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	logger.LogStartup("master", cfg.Bridge.Address, 0, opts.ConfigPath)

	client, err := bridge.Dial(cfg.Bridge, logger)
	if err != nil {
		return errors.WrapNetworkError(err, cfg.Bridge.Address)
	}
	defer client.Close()

	switch {
	case opts.Interactive:
		return runInteractive(client)
	case opts.Station >= 0 && opts.Parameter >= 0:
		return runOnce(client, opts)
	default:
		return pollTargets(client, cfg, logger)
	}
}

// runOnce performs the single transaction named by the flags.
func runOnce(client *bridge.Client, opts MasterOptions) error {
	addr, err := protocol.NewAddress(opts.Station)
	if err != nil {
		return err
	}
	param, err := protocol.NewParameter(opts.Parameter)
	if err != nil {
		return err
	}

	if opts.Value != nil {
		format := protocol.FormatNormal
		if opts.Wide {
			format = protocol.FormatWide
		}
		value, err := protocol.NewValueFormat(*opts.Value, format)
		if err != nil {
			return err
		}
		if err := client.Write(addr, param, value); err != nil {
			return errors.WrapBusError(err, "write", opts.Station)
		}
		fmt.Fprintf(os.Stdout, "station %d parameter %04d = %d (acknowledged)\n",
			opts.Station, opts.Parameter, *opts.Value)
		return nil
	}

	value, err := client.Read(addr, param)
	if err != nil {
		return errors.WrapBusError(err, "read", opts.Station)
	}
	fmt.Fprintf(os.Stdout, "station %d parameter %04d = %d\n", opts.Station, opts.Parameter, value.Int())
	return nil
}

// pollTargets reads and writes the configured targets in a loop until
// SIGINT/SIGTERM.
func pollTargets(client *bridge.Client, cfg *config.MasterConfig, logger *logging.Logger) error {
	fwd, err := startForwarder(cfg.MQTT, logger)
	if err != nil {
		logger.Error("MQTT forwarder disabled: %v", err)
	}
	if fwd != nil {
		defer fwd.Close()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Fprintf(os.Stdout, "Polling %d targets. Press Ctrl+C to stop.\n", len(cfg.Targets))

	for {
		for _, target := range cfg.Targets {
			pollTarget(client, target, fwd, logger)
		}

		delay := pollInterval
		if cfg.PollJitterMs > 0 {
			delay += time.Duration(rand.Intn(cfg.PollJitterMs)) * time.Millisecond
		}
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stdout, "\nStopping.")
			return nil
		case <-time.After(delay):
		}
	}
}

func pollTarget(client *bridge.Client, target config.TargetConfig, fwd *mqttfwd.Forwarder, logger *logging.Logger) {
	addr, err := protocol.NewAddress(target.Station)
	if err != nil {
		logger.Error("Target %s: %v", target.Name, err)
		return
	}
	param, err := protocol.NewParameter(target.Parameter)
	if err != nil {
		logger.Error("Target %s: %v", target.Name, err)
		return
	}

	ev := mqttfwd.BusEvent{Station: target.Station, Parameter: target.Parameter}

	if target.Write != nil {
		ev.Kind = mqttfwd.KindWrite
		format := protocol.FormatNormal
		if target.Wide {
			format = protocol.FormatWide
		}
		value, err := protocol.NewValueFormat(*target.Write, format)
		if err != nil {
			logger.Error("Target %s: %v", target.Name, err)
			return
		}
		if err := client.Write(addr, param, value); err != nil {
			ev.Error = err.Error()
		} else {
			ev.Value = target.Write
		}
	} else {
		ev.Kind = mqttfwd.KindRead
		value, err := client.Read(addr, param)
		if err != nil {
			ev.Error = err.Error()
		} else {
			v := value.Int()
			ev.Value = &v
			fmt.Fprintf(os.Stdout, "%-16s station %2d parameter %04d = %d\n",
				target.Name, target.Station, target.Parameter, v)
		}
	}
	if ev.Error != "" {
		fmt.Fprintf(os.Stdout, "%-16s station %2d parameter %04d: %s\n",
			target.Name, target.Station, target.Parameter, ev.Error)
	}

	if fwd != nil {
		if err := fwd.Publish(ev); err != nil {
			logger.Error("MQTT publish: %v", err)
		}
	}
}

// runInteractive prompts for transactions until the user quits.
func runInteractive(client *bridge.Client) error {
	for {
		var (
			action  string
			station string
			param   string
			value   string
		)

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Action").
					Options(
						huh.NewOption("Read parameter", "read"),
						huh.NewOption("Write parameter", "write"),
						huh.NewOption("Quit", "quit"),
					).
					Value(&action),
			),
			huh.NewGroup(
				huh.NewInput().
					Title("Station address (0-99)").
					Validate(intInRange(0, protocol.MaxAddress)).
					Value(&station),
				huh.NewInput().
					Title("Parameter (0-9999)").
					Validate(intInRange(0, protocol.MaxParameter)).
					Value(&param),
				huh.NewInput().
					Title("Value (writes only)").
					Validate(optionalIntInRange(protocol.MinValue, protocol.MaxValue)).
					Value(&value),
			).WithHideFunc(func() bool { return action == "quit" }),
		)
		if err := form.Run(); err != nil {
			return err
		}
		if action == "quit" {
			return nil
		}

		stationN, _ := strconv.Atoi(station)
		paramN, _ := strconv.Atoi(param)
		opts := MasterOptions{Station: stationN, Parameter: paramN}
		if action == "write" {
			if value == "" {
				fmt.Fprintln(os.Stdout, "a write needs a value")
				continue
			}
			valueN, _ := strconv.Atoi(value)
			opts.Value = &valueN
		}

		if err := runOnce(client, opts); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
}

func intInRange(lo, hi int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("not a number")
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be in [%d, %d]", lo, hi)
		}
		return nil
	}
}

func optionalIntInRange(lo, hi int) func(string) error {
	check := intInRange(lo, hi)
	return func(s string) error {
		if s == "" {
			return nil
		}
		return check(s)
	}
}
