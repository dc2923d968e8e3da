package codec

import "github.com/cth-oso/x328/internal/x328/protocol"

// ResponseKind tags the tokens produced by ResponseScanner.
type ResponseKind int

const (
	// RespNeedData means the input ended inside a frame; feed more bytes.
	RespNeedData ResponseKind = iota
	// RespWriteOk is a single ACK.
	RespWriteOk
	// RespWriteFailed is a single NAK.
	RespWriteFailed
	// RespInvalidParameter is a single EOT: the parameter does not exist
	// on the node.
	RespInvalidParameter
	// RespReadValue is a full read response with the echoed parameter.
	RespReadValue
	// RespInvalid is a structurally broken or checksum-failing response.
	RespInvalid
)

// ResponseToken is one decoded event from a node transmit channel.
type ResponseToken struct {
	Kind      ResponseKind
	Parameter protocol.Parameter
	Value     protocol.Value
}

type respState int

const (
	respIdle  respState = iota
	respParam           // collecting the four echoed parameter digits
	respValue           // collecting value bytes until ETX
	respBCC             // expecting the checksum byte
)

// ResponseScanner incrementally decodes a node's byte stream: the single
// control-byte replies and the `STX param value ETX BCC` read response.
// Same contract as CommandScanner: fixed buffers, no allocation, no panic
// on arbitrary input, back to idle after every error.
type ResponseScanner struct {
	state respState
	body  protocol.Buffer // BCC-covered bytes: param, value, ETX
	param protocol.Parameter
	vpos  int
}

// Reset drops any partial frame.
func (s *ResponseScanner) Reset() {
	s.state = respIdle
	s.body.Reset()
}

// Feed advances the scanner over data, returning bytes consumed and the
// first token found.
func (s *ResponseScanner) Feed(data []byte) (int, ResponseToken) {
	for i, b := range data {
		if tok, done := s.step(b); done {
			return i + 1, tok
		}
	}
	return len(data), ResponseToken{Kind: RespNeedData}
}

func (s *ResponseScanner) step(b byte) (ResponseToken, bool) {
	switch s.state {
	case respIdle:
		switch b {
		case protocol.ACK:
			return ResponseToken{Kind: RespWriteOk}, true
		case protocol.NAK:
			return ResponseToken{Kind: RespWriteFailed}, true
		case protocol.EOT:
			return ResponseToken{Kind: RespInvalidParameter}, true
		case protocol.STX:
			s.body.Reset()
			s.state = respParam
		default:
			return ResponseToken{Kind: RespInvalid}, true
		}

	case respParam:
		if b < '0' || b > '9' {
			return s.invalid()
		}
		_ = s.body.Append(b)
		if s.body.Len() == protocol.ParameterWidth {
			param, err := protocol.ParseParameter(s.body.Bytes())
			if err != nil {
				return s.invalid()
			}
			s.param = param
			s.vpos = s.body.Len()
			s.state = respValue
		}

	case respValue:
		switch {
		case b == protocol.ETX:
			if s.body.Len() == s.vpos {
				return s.invalid()
			}
			if _, err := protocol.ParseValue(s.body.Bytes()[s.vpos:]); err != nil {
				return s.invalid()
			}
			_ = s.body.Append(protocol.ETX)
			s.state = respBCC
		case b == '+' || b == '-' || (b >= '0' && b <= '9'):
			if s.body.Len()-s.vpos >= protocol.MaxValueWidth {
				return s.invalid()
			}
			_ = s.body.Append(b)
		default:
			return s.invalid()
		}

	case respBCC:
		if !protocol.CheckBCC(s.body.Bytes(), b) {
			return s.invalid()
		}
		value, err := protocol.ParseValue(s.body.Bytes()[s.vpos : s.body.Len()-1])
		s.state = respIdle
		if err != nil {
			return ResponseToken{Kind: RespInvalid}, true
		}
		return ResponseToken{Kind: RespReadValue, Parameter: s.param, Value: value}, true
	}
	return ResponseToken{}, false
}

func (s *ResponseScanner) invalid() (ResponseToken, bool) {
	s.state = respIdle
	return ResponseToken{Kind: RespInvalid}, true
}
