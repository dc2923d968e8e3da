package codec

import "github.com/cth-oso/x328/internal/x328/protocol"

// CommandKind tags the tokens produced by CommandScanner.
type CommandKind int

const (
	// CmdNeedData means the input ended inside a frame; feed more bytes.
	CmdNeedData CommandKind = iota
	// CmdRead is a parameter read command.
	CmdRead
	// CmdWrite is a parameter write command.
	CmdWrite
	// CmdReadAgain is an abbreviated poll (ACK/NAK/BS); Offset holds the
	// parameter delta.
	CmdReadAgain
	// CmdInvalid is a structurally broken or checksum-failing frame whose
	// address field still parsed, so the addressed node can answer NAK.
	// Err carries the typed cause.
	CmdInvalid
)

// CommandToken is one decoded event from the controller transmit channel.
type CommandToken struct {
	Kind      CommandKind
	Address   protocol.Address
	Parameter protocol.Parameter
	Value     protocol.Value
	Offset    int
	Err       error
}

type cmdState int

const (
	cmdHunt       cmdState = iota // between frames, waiting for EOT
	cmdAddress                    // collecting the four address bytes
	cmdDispatch                   // after address: digit starts a read, STX a write
	cmdReadParam                  // read path: collecting parameter digits
	cmdReadEnq                    // read path: expecting ENQ
	cmdWriteParam                 // write path: collecting parameter digits
	cmdWriteValue                 // write path: collecting value bytes until ETX
	cmdWriteBCC                   // write path: expecting the checksum byte
)

// CommandScanner incrementally decodes the bus-controller byte stream. Its
// only mutable state is the current phase and two fixed-capacity buffers;
// it never allocates and never panics on arbitrary input.
//
// Corruption recovery: before the address has parsed, broken input is
// consumed silently and the scanner hunts for the next EOT. Once an address
// is known, a broken frame surfaces as CmdInvalid so the addressed node can
// reject it. An EOT encountered anywhere always starts a fresh frame.
type CommandScanner struct {
	state cmdState
	field protocol.Buffer // address scratch
	body  protocol.Buffer // BCC-covered bytes: param, value, ETX
	addr  protocol.Address
	param protocol.Parameter
	vpos  int // body offset where the value field starts
}

// Reset drops any partial frame.
func (s *CommandScanner) Reset() {
	s.state = cmdHunt
	s.field.Reset()
	s.body.Reset()
}

// Feed advances the scanner over data. It returns the number of bytes
// consumed and the first token found; pass data[consumed:] (plus any new
// bytes) to the next call. A CmdNeedData token means all of data was
// consumed into partial state.
func (s *CommandScanner) Feed(data []byte) (int, CommandToken) {
	for i, b := range data {
		tok, consumed, done := s.step(b)
		if done {
			if consumed {
				return i + 1, tok
			}
			return i, tok
		}
	}
	return len(data), CommandToken{Kind: CmdNeedData}
}

// step processes one byte. done reports that a token is ready; consumed
// reports whether the current byte belongs to that token (an EOT that
// aborts a frame is left for the next frame).
func (s *CommandScanner) step(b byte) (tok CommandToken, consumed, done bool) {
	switch s.state {
	case cmdHunt:
		switch b {
		case protocol.EOT:
			s.begin()
		case protocol.ACK:
			return CommandToken{Kind: CmdReadAgain, Offset: 1}, true, true
		case protocol.NAK:
			return CommandToken{Kind: CmdReadAgain, Offset: 0}, true, true
		case protocol.BS:
			return CommandToken{Kind: CmdReadAgain, Offset: -1}, true, true
		}
		// anything else is noise between frames

	case cmdAddress:
		if b == protocol.EOT {
			s.begin()
			return
		}
		if b < '0' || b > '9' {
			s.state = cmdHunt
			return
		}
		_ = s.field.Append(b)
		if s.field.Len() == protocol.AddressWidth {
			addr, err := protocol.ParseAddress(s.field.Bytes())
			if err != nil {
				// undoubled digits: line corruption before the address
				// is trustworthy, resynchronize silently
				s.state = cmdHunt
				return
			}
			s.addr = addr
			s.state = cmdDispatch
		}

	case cmdDispatch:
		switch {
		case b == protocol.STX:
			s.body.Reset()
			s.state = cmdWriteParam
		case b >= '0' && b <= '9':
			s.field.Reset()
			_ = s.field.Append(b)
			s.state = cmdReadParam
		default:
			return s.invalid(b, protocol.ErrFraming)
		}

	case cmdReadParam:
		if b < '0' || b > '9' {
			return s.invalid(b, protocol.ErrInvalidDigit)
		}
		_ = s.field.Append(b)
		if s.field.Len() == protocol.ParameterWidth {
			param, err := protocol.ParseParameter(s.field.Bytes())
			if err != nil {
				return s.invalid(b, err)
			}
			s.param = param
			s.state = cmdReadEnq
		}

	case cmdReadEnq:
		if b != protocol.ENQ {
			return s.invalid(b, protocol.ErrFraming)
		}
		s.state = cmdHunt
		return CommandToken{Kind: CmdRead, Address: s.addr, Parameter: s.param}, true, true

	case cmdWriteParam:
		if b < '0' || b > '9' {
			return s.invalid(b, protocol.ErrInvalidDigit)
		}
		_ = s.body.Append(b)
		if s.body.Len() == protocol.ParameterWidth {
			param, err := protocol.ParseParameter(s.body.Bytes())
			if err != nil {
				return s.invalid(b, err)
			}
			s.param = param
			s.vpos = s.body.Len()
			s.state = cmdWriteValue
		}

	case cmdWriteValue:
		switch {
		case b == protocol.ETX:
			if s.body.Len() == s.vpos {
				return s.invalid(b, protocol.ErrFraming) // empty value field
			}
			if _, err := protocol.ParseValue(s.body.Bytes()[s.vpos:]); err != nil {
				return s.invalid(b, err)
			}
			_ = s.body.Append(protocol.ETX)
			s.state = cmdWriteBCC
		case b == '+' || b == '-' || (b >= '0' && b <= '9'):
			if s.body.Len()-s.vpos >= protocol.MaxValueWidth {
				return s.invalid(b, protocol.ErrValueOutOfRange)
			}
			_ = s.body.Append(b)
		default:
			return s.invalid(b, protocol.ErrInvalidDigit)
		}

	case cmdWriteBCC:
		if protocol.CheckBCC(s.body.Bytes(), b) {
			value, err := protocol.ParseValue(s.body.Bytes()[s.vpos : s.body.Len()-1])
			s.state = cmdHunt
			if err != nil {
				return CommandToken{Kind: CmdInvalid, Address: s.addr, Err: err}, true, true
			}
			return CommandToken{Kind: CmdWrite, Address: s.addr, Parameter: s.param, Value: value}, true, true
		}
		return s.invalid(b, protocol.ErrChecksum)
	}
	return CommandToken{}, false, false
}

func (s *CommandScanner) begin() {
	s.field.Reset()
	s.body.Reset()
	s.state = cmdAddress
}

// invalid aborts the current frame with a CmdInvalid token. A valid BCC
// never falls below 0x20, so an EOT in any of these positions can only be
// the start of the next frame; it is left unconsumed.
func (s *CommandScanner) invalid(b byte, err error) (CommandToken, bool, bool) {
	s.state = cmdHunt
	tok := CommandToken{Kind: CmdInvalid, Address: s.addr, Err: err}
	if b == protocol.EOT {
		return tok, false, true
	}
	return tok, true, true
}
