// Package master implements the bus-controller half of the X3.28 protocol
// as a sans-IO state machine. The host owns the transport and all timing:
// it transmits the bytes returned by StartRead/StartWrite, feeds received
// bytes back in, and signals timeouts itself. One transaction is in flight
// at a time; every terminal event returns the machine to idle.
package master

import (
	"github.com/cth-oso/x328/internal/x328/codec"
	"github.com/cth-oso/x328/internal/x328/protocol"
)

// State is the master transaction state.
type State int

const (
	// StateIdle accepts a new StartRead or StartWrite.
	StateIdle State = iota
	// StateAwaitingRead waits for a read response.
	StateAwaitingRead
	// StateAwaitingWrite waits for a write acknowledgement.
	StateAwaitingWrite
)

// EventKind tags the events returned by Feed.
type EventKind int

const (
	// EventNeedMoreData means the response is incomplete; keep feeding.
	EventNeedMoreData EventKind = iota
	// EventReadCompleted carries the value returned by the node.
	EventReadCompleted
	// EventWriteAcked means the node acknowledged the write.
	EventWriteAcked
	// EventNak means the node rejected the command.
	EventNak
	// EventInvalidParameter means the node answered EOT: the parameter
	// does not exist.
	EventInvalidParameter
	// EventTimedOut is produced after NotifyTimeout.
	EventTimedOut
	// EventProtocolError carries a typed error for a malformed,
	// checksum-failing or out-of-sequence response.
	EventProtocolError
)

// Event is the outcome of one Feed call. Err is set for EventProtocolError.
type Event struct {
	Kind  EventKind
	Value protocol.Value
	Err   error
}

// Master is the X3.28 bus controller state machine. Instances hold only
// fixed buffers; they are safe to drop at any point and must be driven by a
// single owner.
type Master struct {
	state State
	param protocol.Parameter
	scan  codec.ResponseScanner
	out   protocol.Buffer

	// read-again bookkeeping for the abbreviated poll form
	canAgain   bool
	againAddr  protocol.Address
	againParam protocol.Parameter
	armAgain   bool
	armAddr    protocol.Address
}

// New returns an idle Master.
func New() *Master {
	return &Master{}
}

// State returns the current transaction state.
func (m *Master) State() State { return m.state }

// StartRead begins a read transaction and returns the exact bytes to
// transmit. The returned slice aliases an internal buffer and is valid
// until the next Start call. Fails with a sequence error if a transaction
// is already outstanding.
func (m *Master) StartRead(addr protocol.Address, param protocol.Parameter) ([]byte, error) {
	if m.state != StateIdle {
		return nil, protocol.Errorf(protocol.KindSequence, "transaction already in progress")
	}
	m.canAgain = false
	m.armAgain = false
	m.out.Reset()
	if err := codec.AppendReadCommand(&m.out, addr, param); err != nil {
		return nil, err
	}
	m.beginRead(param)
	return m.out.Bytes(), nil
}

// StartReadAgain begins a read transaction, using the single-byte ACK, NAK
// or BS command form when the node still holds read-again state from the
// immediately preceding read. Otherwise it falls back to the full command.
func (m *Master) StartReadAgain(addr protocol.Address, param protocol.Parameter) ([]byte, error) {
	if m.state != StateIdle {
		return nil, protocol.Errorf(protocol.KindSequence, "transaction already in progress")
	}
	m.out.Reset()
	if offset, ok := m.tryAgain(addr, param); ok {
		if err := codec.AppendReadAgainCommand(&m.out, offset); err != nil {
			return nil, err
		}
	} else if err := codec.AppendReadCommand(&m.out, addr, param); err != nil {
		return nil, err
	}
	m.armAgain = true
	m.armAddr = addr
	m.beginRead(param)
	return m.out.Bytes(), nil
}

// StartWrite begins a write transaction and returns the exact bytes to
// transmit. The value has already been range-checked at construction, so
// the only failure here is an outstanding transaction.
func (m *Master) StartWrite(addr protocol.Address, param protocol.Parameter, value protocol.Value) ([]byte, error) {
	if m.state != StateIdle {
		return nil, protocol.Errorf(protocol.KindSequence, "transaction already in progress")
	}
	m.canAgain = false
	m.armAgain = false
	m.out.Reset()
	if err := codec.AppendWriteCommand(&m.out, addr, param, value); err != nil {
		return nil, err
	}
	m.state = StateAwaitingWrite
	m.scan.Reset()
	return m.out.Bytes(), nil
}

// Feed advances the outstanding transaction with bytes received from the
// bus. Every event other than EventNeedMoreData is terminal and returns
// the machine to idle; retrying is the caller's decision.
func (m *Master) Feed(data []byte) Event {
	switch m.state {
	case StateAwaitingRead:
		return m.feedRead(data)
	case StateAwaitingWrite:
		return m.feedWrite(data)
	default:
		return Event{Kind: EventProtocolError, Err: protocol.Errorf(protocol.KindSequence, "no transaction in progress")}
	}
}

// NotifyTimeout forces the outstanding transaction to time out and returns
// the machine to idle. This is the engine's only time-related primitive;
// the host owns the clock and the timeout policy. Calling it while idle is
// harmless.
func (m *Master) NotifyTimeout() Event {
	if m.state == StateIdle {
		return Event{Kind: EventTimedOut, Err: protocol.ErrTimedOut}
	}
	m.reset()
	return Event{Kind: EventTimedOut, Err: protocol.ErrTimedOut}
}

// Reset unconditionally discards any in-flight transaction. Always safe.
func (m *Master) Reset() {
	m.reset()
	m.canAgain = false
}

func (m *Master) beginRead(param protocol.Parameter) {
	m.param = param
	m.state = StateAwaitingRead
	m.scan.Reset()
}

func (m *Master) reset() {
	m.state = StateIdle
	m.armAgain = false
	m.scan.Reset()
}

// tryAgain consumes the read-again state and reports the usable offset.
func (m *Master) tryAgain(addr protocol.Address, param protocol.Parameter) (int, bool) {
	if !m.canAgain || m.againAddr != addr {
		m.canAgain = false
		return 0, false
	}
	m.canAgain = false
	d := int(param) - int(m.againParam)
	if d < -1 || d > 1 {
		return 0, false
	}
	return d, true
}

func (m *Master) feedRead(data []byte) Event {
	_, tok := m.scan.Feed(data)
	switch tok.Kind {
	case codec.RespNeedData:
		return Event{Kind: EventNeedMoreData}
	case codec.RespReadValue:
		if tok.Parameter != m.param {
			m.reset()
			return Event{Kind: EventProtocolError, Err: protocol.Errorf(protocol.KindFraming,
				"response for parameter %04d, expected %04d", tok.Parameter, m.param)}
		}
		if m.armAgain {
			m.canAgain = true
			m.againAddr = m.armAddr
			m.againParam = m.param
		}
		m.reset()
		return Event{Kind: EventReadCompleted, Value: tok.Value}
	case codec.RespInvalidParameter:
		m.reset()
		return Event{Kind: EventInvalidParameter, Err: protocol.ErrInvalidParameter}
	case codec.RespWriteFailed:
		m.reset()
		return Event{Kind: EventNak, Err: protocol.ErrNak}
	default:
		m.reset()
		return Event{Kind: EventProtocolError, Err: protocol.Errorf(protocol.KindFraming, "invalid read response")}
	}
}

func (m *Master) feedWrite(data []byte) Event {
	_, tok := m.scan.Feed(data)
	switch tok.Kind {
	case codec.RespNeedData:
		return Event{Kind: EventNeedMoreData}
	case codec.RespWriteOk:
		m.reset()
		return Event{Kind: EventWriteAcked}
	case codec.RespWriteFailed:
		m.reset()
		return Event{Kind: EventNak, Err: protocol.ErrNak}
	case codec.RespInvalidParameter:
		m.reset()
		return Event{Kind: EventInvalidParameter, Err: protocol.ErrInvalidParameter}
	default:
		m.reset()
		return Event{Kind: EventProtocolError, Err: protocol.Errorf(protocol.KindFraming, "invalid write response")}
	}
}
