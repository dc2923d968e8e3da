// Package scanner reconstructs X3.28 transactions from passively tapped
// byte streams. It decodes the controller transmit channel and the node
// transmit channel separately and correlates them into request/response
// events, which makes it the core of bus sniffing and of transparently
// splitting a bus into segments.
package scanner

import (
	"github.com/cth-oso/x328/internal/x328/codec"
	"github.com/cth-oso/x328/internal/x328/protocol"
)

// CtrlKind tags the events decoded from the controller channel.
type CtrlKind int

const (
	// CtrlNone means no complete command was found yet.
	CtrlNone CtrlKind = iota
	// CtrlRead is a parameter read request. Abbreviated polls are
	// resolved against the previous read and reported in the same form.
	CtrlRead
	// CtrlWrite is a parameter write request.
	CtrlWrite
	// CtrlNodeTimeout means the controller issued a new command without
	// receiving a response to the previous one.
	CtrlNodeTimeout
)

// ControllerEvent is one decoded controller transmission.
type ControllerEvent struct {
	Kind      CtrlKind
	Address   protocol.Address
	Parameter protocol.Parameter
	Value     protocol.Value
}

// NodeKind tags the events decoded from the node channel.
type NodeKind int

const (
	// NodeNone means the response is still incomplete.
	NodeNone NodeKind = iota
	// NodeRead is a response to a read request: Value on success, Err on
	// rejection or a malformed reply.
	NodeRead
	// NodeWrite is a response to a write request: Err is nil on ACK.
	NodeWrite
	// NodeUnexpected means a node transmitted without an outstanding
	// request.
	NodeUnexpected
)

// NodeEvent is one decoded node transmission.
type NodeEvent struct {
	Kind  NodeKind
	Value protocol.Value
	Err   error
}

type expect int

const (
	expectCommand expect = iota
	expectReadResponse
	expectWriteResponse
)

// Scanner correlates the two directions of an X3.28 bus. Feed controller
// bytes through FeedController and node bytes through FeedNode; each call
// follows the usual (consumed, event) convention and the caller re-feeds
// the unconsumed tail together with new data.
type Scanner struct {
	cmd    codec.CommandScanner
	resp   codec.ResponseScanner
	expect expect

	expParam protocol.Parameter

	canAgain   bool
	againAddr  protocol.Address
	againParam protocol.Parameter
}

// New returns a Scanner expecting a controller command.
func New() *Scanner {
	return &Scanner{}
}

// Reset drops all partial frames and correlation state.
func (s *Scanner) Reset() {
	s.cmd.Reset()
	s.resp.Reset()
	s.expect = expectCommand
	s.canAgain = false
}

// FeedController decodes bytes tapped from the controller transmit channel.
// A command arriving while a response is still outstanding first yields a
// CtrlNodeTimeout event with no bytes consumed; the next call decodes the
// command itself.
func (s *Scanner) FeedController(data []byte) (int, ControllerEvent) {
	if s.expect != expectCommand {
		s.expect = expectCommand
		s.canAgain = false
		s.resp.Reset()
		return 0, ControllerEvent{Kind: CtrlNodeTimeout}
	}

	consumed, tok := s.cmd.Feed(data)
	if tok.Kind == codec.CmdNeedData {
		return consumed, ControllerEvent{Kind: CtrlNone}
	}

	again := s.canAgain
	s.canAgain = false

	switch tok.Kind {
	case codec.CmdRead:
		return consumed, s.beginRead(tok.Address, tok.Parameter)
	case codec.CmdWrite:
		s.expect = expectWriteResponse
		s.resp.Reset()
		return consumed, ControllerEvent{
			Kind:      CtrlWrite,
			Address:   tok.Address,
			Parameter: tok.Parameter,
			Value:     tok.Value,
		}
	case codec.CmdReadAgain:
		if again {
			if param, ok := s.againParam.Offset(tok.Offset); ok {
				return consumed, s.beginRead(s.againAddr, param)
			}
		}
		// a stray or off-the-range poll gets an EOT or nothing back;
		// either way the next controller byte starts a fresh command
		return consumed, ControllerEvent{Kind: CtrlNone}
	default: // CmdInvalid
		return consumed, ControllerEvent{Kind: CtrlNone}
	}
}

// FeedNode decodes bytes tapped from the node transmit channel.
func (s *Scanner) FeedNode(data []byte) (int, NodeEvent) {
	switch s.expect {
	case expectReadResponse:
		consumed, tok := s.resp.Feed(data)
		if tok.Kind == codec.RespNeedData {
			return consumed, NodeEvent{Kind: NodeNone}
		}
		s.expect = expectCommand
		switch tok.Kind {
		case codec.RespReadValue:
			if tok.Parameter != s.expParam {
				return consumed, NodeEvent{Kind: NodeRead, Err: protocol.Errorf(protocol.KindFraming,
					"response for parameter %04d, expected %04d", tok.Parameter, s.expParam)}
			}
			return consumed, NodeEvent{Kind: NodeRead, Value: tok.Value}
		case codec.RespInvalidParameter:
			return consumed, NodeEvent{Kind: NodeRead, Err: protocol.ErrInvalidParameter}
		case codec.RespWriteFailed:
			return consumed, NodeEvent{Kind: NodeRead, Err: protocol.ErrNak}
		default:
			return consumed, NodeEvent{Kind: NodeRead, Err: protocol.Errorf(protocol.KindFraming, "invalid read response")}
		}

	case expectWriteResponse:
		consumed, tok := s.resp.Feed(data)
		if tok.Kind == codec.RespNeedData {
			return consumed, NodeEvent{Kind: NodeNone}
		}
		s.expect = expectCommand
		switch tok.Kind {
		case codec.RespWriteOk:
			return consumed, NodeEvent{Kind: NodeWrite}
		case codec.RespWriteFailed:
			return consumed, NodeEvent{Kind: NodeWrite, Err: protocol.ErrNak}
		case codec.RespInvalidParameter:
			return consumed, NodeEvent{Kind: NodeWrite, Err: protocol.ErrInvalidParameter}
		default:
			return consumed, NodeEvent{Kind: NodeWrite, Err: protocol.Errorf(protocol.KindFraming, "invalid write response")}
		}

	default:
		return len(data), NodeEvent{Kind: NodeUnexpected}
	}
}

func (s *Scanner) beginRead(addr protocol.Address, param protocol.Parameter) ControllerEvent {
	s.expect = expectReadResponse
	s.expParam = param
	s.canAgain = true
	s.againAddr = addr
	s.againParam = param
	s.resp.Reset()
	return ControllerEvent{Kind: CtrlRead, Address: addr, Parameter: param}
}
