// Package node implements the responding half of the X3.28 protocol as a
// sans-IO state machine. The host reads bytes from the bus and feeds them
// in; when Feed surfaces a read or write request the application answers it
// through one of the Respond methods, which return the exact bytes to
// transmit. The engine never touches the transport and keeps no clock.
package node

import (
	"github.com/cth-oso/x328/internal/x328/codec"
	"github.com/cth-oso/x328/internal/x328/protocol"
)

// RequestKind tags the requests surfaced by Feed.
type RequestKind int

const (
	// RequestNone means no complete command for this node has arrived.
	RequestNone RequestKind = iota
	// RequestRead asks for the current value of Parameter. Answer with
	// RespondValue, RespondInvalidParameter, RespondNak or NoReply.
	RequestRead
	// RequestWrite asks to set Parameter to Value. Answer with
	// Acknowledge, RespondNak, RespondInvalidParameter or NoReply.
	RequestWrite
	// RequestReply carries a reply the node has already formed on its
	// own: NAK for a corrupt frame addressed to it, EOT for an
	// abbreviated poll that ran off the parameter range. Transmit Reply,
	// or drop it to leave the controller to its timeout. Err is set when
	// the reply rejects a malformed frame and carries the typed cause.
	RequestReply
)

// Request is the outcome of one Feed call. Address may differ from the
// node's own address when it listens on the wildcard address. Reply is set
// only for RequestReply and aliases an internal buffer.
type Request struct {
	Kind      RequestKind
	Address   protocol.Address
	Parameter protocol.Parameter
	Value     protocol.Value
	Reply     []byte
	Err       error
}

// Node is the X3.28 bus node state machine for a single device address.
// A node at the wildcard address 0 receives every command on the bus.
// Instances must be driven by a single owner.
type Node struct {
	addr protocol.Address
	scan codec.CommandScanner
	out  protocol.Buffer

	pending  RequestKind
	reqAddr  protocol.Address
	reqParam protocol.Parameter

	// read-again state: set when a read reply is sent, consumed by the
	// very next command on the bus
	canAgain   bool
	againAddr  protocol.Address
	againParam protocol.Parameter
}

// New returns a node accepting commands for addr.
func New(addr protocol.Address) *Node {
	return &Node{addr: addr}
}

// Address returns the address the node listens on.
func (n *Node) Address() protocol.Address { return n.addr }

// Feed consumes all of data and returns the resulting request. On a shared
// bus the controller moves on as soon as it stops waiting, so when data
// holds several complete commands only the last one counts: earlier
// requests within the same chunk are dropped. A request surfaced by a
// previous Feed must be answered (or dropped with NoReply) first; calling
// Feed while one is outstanding returns a sequence error and leaves the
// node untouched.
func (n *Node) Feed(data []byte) (Request, error) {
	if n.pending != RequestNone {
		return Request{Kind: RequestNone}, protocol.Errorf(protocol.KindSequence, "request pending an answer")
	}
	req := Request{Kind: RequestNone}
	for len(data) > 0 {
		consumed, tok := n.scan.Feed(data)
		data = data[consumed:]
		if tok.Kind == codec.CmdNeedData {
			break
		}
		// any completed command invalidates the read-again state,
		// whether or not it was addressed to us
		again := n.canAgain
		n.canAgain = false

		switch tok.Kind {
		case codec.CmdRead:
			if n.forUs(tok.Address) {
				req = n.accept(RequestRead, tok.Address, tok.Parameter, protocol.Value{})
			} else {
				req = n.ignore()
			}
		case codec.CmdWrite:
			if n.forUs(tok.Address) {
				req = n.accept(RequestWrite, tok.Address, tok.Parameter, tok.Value)
			} else {
				req = n.ignore()
			}
		case codec.CmdReadAgain:
			if !again {
				req = n.ignore()
				break
			}
			if param, ok := n.againParam.Offset(tok.Offset); ok {
				req = n.accept(RequestRead, n.againAddr, param, protocol.Value{})
			} else {
				req = n.reply(protocol.EOT)
			}
		case codec.CmdInvalid:
			// the wildcard listener stays quiet here: answering NAK
			// for every node's garbage would collide on the bus
			if tok.Address == n.addr {
				req = n.reply(protocol.NAK)
				req.Err = tok.Err
			} else {
				req = n.ignore()
			}
		}
	}
	return req, nil
}

// RespondValue answers a pending read request with value and returns the
// `STX param value ETX BCC` reply to transmit. The returned slice aliases
// an internal buffer and is valid until the next Feed or Respond call.
// Sending the reply arms the abbreviated poll forms for the next command.
func (n *Node) RespondValue(value protocol.Value) ([]byte, error) {
	if n.pending != RequestRead {
		return nil, protocol.Errorf(protocol.KindSequence, "no read request pending")
	}
	n.canAgain = true
	n.againAddr = n.reqAddr
	n.againParam = n.reqParam
	n.pending = RequestNone
	n.out.Reset()
	if err := codec.AppendReadResponse(&n.out, n.reqParam, value); err != nil {
		return nil, err
	}
	return n.out.Bytes(), nil
}

// RespondInvalidParameter rejects the pending request because the
// parameter does not exist on this device. The reply is a single EOT.
func (n *Node) RespondInvalidParameter() ([]byte, error) {
	if n.pending != RequestRead && n.pending != RequestWrite {
		return nil, protocol.Errorf(protocol.KindSequence, "no request pending")
	}
	return n.reply(protocol.EOT).Reply, nil
}

// RespondNak rejects the pending request for any reason other than an
// invalid parameter number. The reply is a single NAK.
func (n *Node) RespondNak() ([]byte, error) {
	if n.pending != RequestRead && n.pending != RequestWrite {
		return nil, protocol.Errorf(protocol.KindSequence, "no request pending")
	}
	return n.reply(protocol.NAK).Reply, nil
}

// Acknowledge confirms a pending write request. The reply is a single ACK.
func (n *Node) Acknowledge() ([]byte, error) {
	if n.pending != RequestWrite {
		return nil, protocol.Errorf(protocol.KindSequence, "no write request pending")
	}
	return n.reply(protocol.ACK).Reply, nil
}

// NoReply drops the pending request without answering. The controller is
// left to time out, so this is mainly for requests heard on the wildcard
// address that belong to another physical device.
func (n *Node) NoReply() {
	n.pending = RequestNone
}

// Reset drops any pending request, partial frame and read-again state.
func (n *Node) Reset() {
	n.scan.Reset()
	n.pending = RequestNone
	n.canAgain = false
}

func (n *Node) forUs(addr protocol.Address) bool {
	return addr == n.addr || n.addr == protocol.Wildcard
}

func (n *Node) accept(kind RequestKind, addr protocol.Address, param protocol.Parameter, value protocol.Value) Request {
	n.pending = kind
	n.reqAddr = addr
	n.reqParam = param
	return Request{Kind: kind, Address: addr, Parameter: param, Value: value}
}

func (n *Node) ignore() Request {
	n.pending = RequestNone
	return Request{Kind: RequestNone}
}

func (n *Node) reply(b byte) Request {
	n.pending = RequestNone
	n.out.Reset()
	_ = n.out.Append(b)
	return Request{Kind: RequestReply, Reply: n.out.Bytes()}
}
