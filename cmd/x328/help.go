package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func handleHelpArg(cmd *cobra.Command, args []string) bool {
	if len(args) == 0 {
		return false
	}
	if strings.EqualFold(args[0], "help") {
		_ = cmd.Help()
		return true
	}
	return false
}

func missingFlagError(cmd *cobra.Command, flag string) error {
	_ = cmd.Help()
	return fmt.Errorf("required flag %s not set", flag)
}

// registerLogFlags adds the logging flags shared by the long-running
// commands.
func registerLogFlags(cmd *cobra.Command, level, format *string, logEvery *int) {
	cmd.Flags().StringVar(level, "log-level", "", "log level (silent, error, info, verbose, debug)")
	cmd.Flags().StringVar(format, "log-format", "", "log format (text or json)")
	cmd.Flags().IntVar(logEvery, "log-every", 0, "sample console logging, print every Nth line")
}
