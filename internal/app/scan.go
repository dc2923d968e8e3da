package app

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/cth-oso/x328/internal/bridge"
	"github.com/cth-oso/x328/internal/config"
	"github.com/cth-oso/x328/internal/errors"
	"github.com/cth-oso/x328/internal/logging"
	"github.com/cth-oso/x328/internal/x328/protocol"
)

// ScanOptions configures the station sweep.
type ScanOptions struct {
	Address   string
	Parameter int
	From      int
	To        int
	TimeoutMs int

	LogLevel string
}

// RunScan probes every station in the range with a single read and reports
// the ones that answer. Any response counts, including NAK and EOT: a
// rejection still proves a node is listening on that address.
func RunScan(opts ScanOptions) error {
	if opts.From > opts.To {
		return fmt.Errorf("scan range %d-%d is empty", opts.From, opts.To)
	}

	logger, err := logging.NewLogger(parseLogLevel(opts.LogLevel), "")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	client, err := bridge.Dial(config.BridgeConfig{
		Address:           opts.Address,
		ConnectTimeoutMs:  5000,
		ResponseTimeoutMs: opts.TimeoutMs,
		Retries:           0,
	}, logger)
	if err != nil {
		return errors.WrapNetworkError(err, opts.Address)
	}
	defer client.Close()

	param, err := protocol.NewParameter(opts.Parameter)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Scanning stations %d-%d on %s (parameter %04d)\n",
		opts.From, opts.To, opts.Address, opts.Parameter)

	found := 0
	for station := opts.From; station <= opts.To; station++ {
		addr, err := protocol.NewAddress(station)
		if err != nil {
			return err
		}

		value, err := client.Read(addr, param)
		switch {
		case err == nil:
			fmt.Fprintf(os.Stdout, "  station %2d: parameter %04d = %d\n", station, opts.Parameter, value.Int())
			found++
		case stderrors.Is(err, protocol.ErrTimedOut):
			// silent station
		case stderrors.Is(err, protocol.ErrNak), stderrors.Is(err, protocol.ErrInvalidParameter):
			fmt.Fprintf(os.Stdout, "  station %2d: alive (rejected parameter %04d)\n", station, opts.Parameter)
			found++
		default:
			fmt.Fprintf(os.Stdout, "  station %2d: garbled response (%v)\n", station, err)
			found++
		}
	}

	fmt.Fprintf(os.Stdout, "%d of %d stations answered\n", found, opts.To-opts.From+1)
	return nil
}
