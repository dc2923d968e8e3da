// Package protocol defines the X3.28 byte grammar: control bytes, field
// widths, range-checked field types, the BCC checksum and the error taxonomy
// shared by the codec and the master/node state machines.
//
// X3.28 is a master/slave field-bus protocol used to poll and configure
// industrial and building-automation controllers, typically over RS-422 at
// 9600 7E1. Everything in this package is pure and transport-free.
package protocol

// Control bytes used by the X3.28 grammar.
const (
	STX byte = 0x02 // start of text, opens a parameter/value body
	ETX byte = 0x03 // end of text, closes the body before the BCC
	EOT byte = 0x04 // end of transmission, first byte of every command
	ENQ byte = 0x05 // enquiry, terminates a read command
	ACK byte = 0x06 // acknowledge; as a command: read next parameter
	BS  byte = 0x08 // backspace; as a command: read previous parameter
	NAK byte = 0x15 // negative acknowledge; as a command: read same parameter
)

// Wire field widths.
const (
	AddressWidth   = 4 // two decimal digits, each transmitted twice
	ParameterWidth = 4 // four decimal digits
	MaxValueWidth  = 6 // optional sign plus up to six chars total
)

// MaxFrameSize is the length of the longest possible frame, a write command:
// EOT addr STX param value ETX BCC.
const MaxFrameSize = 1 + AddressWidth + 1 + ParameterWidth + MaxValueWidth + 1 + 1

// Field value ranges.
const (
	MaxAddress   = 99
	MaxParameter = 9999
	MinValue     = -99_999
	MaxValue     = 999_999
)
