package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/cth-oso/x328/internal/x328/protocol"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapNetworkError wraps network errors with user-friendly context
func WrapNetworkError(err error, address string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to communicate with bridge at %s", address),
		Reason:  extractNetworkReason(err),
		Hint:    "The address may not be an X3.28 serial bridge, or there may be a network connectivity issue",
		Try:     fmt.Sprintf("x328 scan --address %s", address),
		Err:     err,
	}
}

// WrapBusError wraps X3.28 protocol errors with user-friendly context
func WrapBusError(err error, operation string, station int) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Bus operation failed: %s on station %d", operation, station),
		Reason:  extractBusReason(err),
		Hint:    "The station may not exist on the bus, or the parameter may be invalid for this device",
		Try:     "Run x328 scan to list the stations that answer on this bus",
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "See the example configuration files for the expected layout",
		Try:     fmt.Sprintf("Validate your config: x328 validate-config --config %s", configPath),
		Err:     err,
	}
}

func extractNetworkReason(err error) string {
	errStr := err.Error()

	// Common network error patterns
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timeout - bridge may be offline or unreachable"
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused - bridge may not be listening on this port"
	}
	if strings.Contains(errStr, "no route to host") {
		return "No route to host - network routing issue or bridge unreachable"
	}
	if strings.Contains(errStr, "connection reset") {
		return "Connection reset - bridge closed the connection unexpectedly"
	}

	return "Network communication failed"
}

func extractBusReason(err error) string {
	switch {
	case stderrors.Is(err, protocol.ErrTimedOut):
		return "The station did not answer within the response timeout"
	case stderrors.Is(err, protocol.ErrInvalidParameter):
		return "The station answered EOT: the parameter does not exist on this device"
	case stderrors.Is(err, protocol.ErrNak):
		return "The station rejected the command with NAK"
	case stderrors.Is(err, protocol.ErrChecksum):
		return "The response failed its checksum, likely line noise"
	case stderrors.Is(err, protocol.ErrFraming):
		return "Received an invalid or malformed response from the station"
	}

	return "X3.28 protocol error occurred"
}
