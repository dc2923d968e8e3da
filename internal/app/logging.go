// Package app wires configuration, logging and transports into runnable
// commands. The cobra layer parses flags and delegates here.
package app

import (
	"github.com/cth-oso/x328/internal/config"
	"github.com/cth-oso/x328/internal/logging"
)

func parseLogLevel(value string) logging.LogLevel {
	switch value {
	case "silent":
		return logging.LogLevelSilent
	case "error":
		return logging.LogLevelError
	case "verbose":
		return logging.LogLevelVerbose
	case "debug":
		return logging.LogLevelDebug
	default:
		return logging.LogLevelInfo
	}
}

// newLogger builds a logger from a config section with optional CLI
// overrides applied on top.
func newLogger(cfg config.LoggingConfig, level, format string, logEvery int) (*logging.Logger, error) {
	if level != "" {
		cfg.Level = level
	}
	if format != "" {
		cfg.Format = format
	}
	if logEvery > 0 {
		cfg.LogEveryN = logEvery
	}
	logger, err := logging.NewLoggerWithOptions(parseLogLevel(cfg.Level), cfg.LogFile, cfg.Format, cfg.LogEveryN)
	if err != nil {
		return nil, err
	}
	return logger, nil
}
