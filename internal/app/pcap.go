package app

import (
	"fmt"
	"os"

	"github.com/cth-oso/x328/internal/pcapx"
)

// PCAPOptions configures offline capture analysis.
type PCAPOptions struct {
	File       string
	BridgePort int
	Verbose    bool
}

// RunPCAP extracts X3.28 transactions from a capture file and prints them
// with a summary.
func RunPCAP(opts PCAPOptions) error {
	txs, err := pcapx.ExtractFromPCAP(opts.File, uint16(opts.BridgePort))
	if err != nil {
		return err
	}

	if opts.Verbose {
		for _, tx := range txs {
			line := fmt.Sprintf("%s  %-7s station %2d parameter %04d",
				tx.Timestamp.Format("15:04:05.000000"), tx.Kind, tx.Station, tx.Parameter)
			if tx.Value != nil {
				line += fmt.Sprintf(" = %d", *tx.Value)
			}
			if tx.Err != "" {
				line += "  (" + tx.Err + ")"
			}
			fmt.Fprintln(os.Stdout, line)
		}
	}

	fmt.Fprint(os.Stdout, pcapx.Summarize(txs).Format())
	return nil
}
