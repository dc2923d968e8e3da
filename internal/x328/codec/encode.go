// Package codec turns validated commands and responses into exact wire byte
// sequences and reconstructs them from raw byte streams. The scanners are
// incremental and self-resynchronizing: arbitrary corrupt input never
// panics, and the next EOT on the line always starts a fresh frame.
package codec

import "github.com/cth-oso/x328/internal/x328/protocol"

// AppendReadCommand encodes `EOT addr param ENQ` into buf.
func AppendReadCommand(buf *protocol.Buffer, addr protocol.Address, param protocol.Parameter) error {
	if err := buf.Append(protocol.EOT); err != nil {
		return err
	}
	a := addr.Wire()
	if err := buf.AppendSlice(a[:]); err != nil {
		return err
	}
	p := param.Wire()
	if err := buf.AppendSlice(p[:]); err != nil {
		return err
	}
	return buf.Append(protocol.ENQ)
}

// AppendWriteCommand encodes `EOT addr STX param value ETX BCC` into buf.
// The checksum covers the bytes after STX through ETX inclusive and is
// always computed here, never supplied by the caller.
func AppendWriteCommand(buf *protocol.Buffer, addr protocol.Address, param protocol.Parameter, value protocol.Value) error {
	if err := buf.Append(protocol.EOT); err != nil {
		return err
	}
	a := addr.Wire()
	if err := buf.AppendSlice(a[:]); err != nil {
		return err
	}
	if err := buf.Append(protocol.STX); err != nil {
		return err
	}
	body := buf.Len()
	p := param.Wire()
	if err := buf.AppendSlice(p[:]); err != nil {
		return err
	}
	v, n := value.Wire()
	if err := buf.AppendSlice(v[:n]); err != nil {
		return err
	}
	if err := buf.Append(protocol.ETX); err != nil {
		return err
	}
	return buf.Append(protocol.BCC(buf.Bytes()[body:]))
}

// AppendReadResponse encodes `STX param value ETX BCC` into buf. The node
// echoes the parameter number so the master can match the response to its
// outstanding request.
func AppendReadResponse(buf *protocol.Buffer, param protocol.Parameter, value protocol.Value) error {
	if err := buf.Append(protocol.STX); err != nil {
		return err
	}
	body := buf.Len()
	p := param.Wire()
	if err := buf.AppendSlice(p[:]); err != nil {
		return err
	}
	v, n := value.Wire()
	if err := buf.AppendSlice(v[:n]); err != nil {
		return err
	}
	if err := buf.Append(protocol.ETX); err != nil {
		return err
	}
	return buf.Append(protocol.BCC(buf.Bytes()[body:]))
}

// AppendReadAgainCommand encodes the abbreviated poll form: a single ACK,
// NAK or BS selecting the next, same or previous parameter on the node that
// answered the preceding read.
func AppendReadAgainCommand(buf *protocol.Buffer, offset int) error {
	switch offset {
	case 1:
		return buf.Append(protocol.ACK)
	case 0:
		return buf.Append(protocol.NAK)
	case -1:
		return buf.Append(protocol.BS)
	default:
		return protocol.Errorf(protocol.KindSequence, "read-again offset %d not in -1..1", offset)
	}
}
