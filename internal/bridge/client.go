package bridge

import (
	"fmt"
	"net"
	"time"

	"github.com/cth-oso/x328/internal/config"
	"github.com/cth-oso/x328/internal/logging"
	"github.com/cth-oso/x328/internal/x328/master"
	"github.com/cth-oso/x328/internal/x328/protocol"
)

// Client runs X3.28 transactions over a TCP serial bridge. It drives the
// master state machine, owning the socket, the response timeout and the
// retry policy. A Client is not safe for concurrent use.
type Client struct {
	conn    net.Conn
	m       *master.Master
	logger  *logging.Logger
	timeout time.Duration
	retries int
	readBuf []byte
}

// Dial connects to the bridge named in cfg.
func Dial(cfg config.BridgeConfig, logger *logging.Logger) (*Client, error) {
	conn, err := net.DialTimeout("tcp", cfg.Address, time.Duration(cfg.ConnectTimeoutMs)*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("connect to bridge %s: %w", cfg.Address, err)
	}
	logger.Verbose("Connected to bridge %s", cfg.Address)
	return &Client{
		conn:    conn,
		m:       master.New(),
		logger:  logger,
		timeout: time.Duration(cfg.ResponseTimeoutMs) * time.Millisecond,
		retries: cfg.Retries,
		readBuf: make([]byte, 64),
	}, nil
}

// Close closes the bridge connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Read reads a parameter from the node at addr.
func (c *Client) Read(addr protocol.Address, param protocol.Parameter) (protocol.Value, error) {
	return c.readWith(addr, param, "read", c.m.StartRead)
}

// ReadAgain reads a parameter from the node at addr, using the abbreviated
// poll form when the previous transaction allows it.
func (c *Client) ReadAgain(addr protocol.Address, param protocol.Parameter) (protocol.Value, error) {
	return c.readWith(addr, param, "read", c.m.StartReadAgain)
}

// Write sets a parameter on the node at addr.
func (c *Client) Write(addr protocol.Address, param protocol.Parameter, value protocol.Value) error {
	start := time.Now()
	ev, err := c.transact(func() ([]byte, error) {
		return c.m.StartWrite(addr, param, value)
	})
	if err == nil {
		err = writeOutcome(ev)
	}
	c.logger.LogTransaction("write", int(addr), int(param), err == nil,
		float64(time.Since(start).Microseconds())/1000.0, err)
	return err
}

func (c *Client) readWith(addr protocol.Address, param protocol.Parameter, op string,
	start func(protocol.Address, protocol.Parameter) ([]byte, error)) (protocol.Value, error) {

	began := time.Now()
	ev, err := c.transact(func() ([]byte, error) {
		return start(addr, param)
	})
	if err == nil {
		err = readOutcome(ev)
	}
	c.logger.LogTransaction(op, int(addr), int(param), err == nil,
		float64(time.Since(began).Microseconds())/1000.0, err)
	if err != nil {
		return protocol.Value{}, err
	}
	return ev.Value, nil
}

// transact sends a command frame and collects the response, retrying on
// timeouts and corrupt responses. Definitive answers from the node (ACK,
// NAK, EOT, a value) are never retried.
func (c *Client) transact(start func() ([]byte, error)) (master.Event, error) {
	var last master.Event
	for attempt := 0; attempt <= c.retries; attempt++ {
		frame, err := start()
		if err != nil {
			return master.Event{}, err
		}
		c.logger.LogFrame("tx", frame)
		if _, err := c.conn.Write(frame); err != nil {
			return master.Event{}, fmt.Errorf("write to bridge: %w", err)
		}

		ev, err := c.collect()
		if err != nil {
			return master.Event{}, err
		}
		last = ev

		switch ev.Kind {
		case master.EventTimedOut:
			c.logger.Verbose("Response timeout, attempt %d of %d", attempt+1, c.retries+1)
			continue
		case master.EventProtocolError:
			c.logger.Verbose("Corrupt response (%v), attempt %d of %d", ev.Err, attempt+1, c.retries+1)
			continue
		default:
			return ev, nil
		}
	}
	return last, nil
}

// collect reads from the socket until the state machine produces a
// terminal event, mapping the read deadline onto a protocol timeout.
func (c *Client) collect() (master.Event, error) {
	deadline := time.Now().Add(c.timeout)
	for {
		c.conn.SetReadDeadline(deadline)
		n, err := c.conn.Read(c.readBuf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return c.m.NotifyTimeout(), nil
			}
			return master.Event{}, fmt.Errorf("read from bridge: %w", err)
		}
		if n == 0 {
			continue
		}
		c.logger.LogFrame("rx", c.readBuf[:n])
		ev := c.m.Feed(c.readBuf[:n])
		if ev.Kind != master.EventNeedMoreData {
			return ev, nil
		}
	}
}

func readOutcome(ev master.Event) error {
	switch ev.Kind {
	case master.EventReadCompleted:
		return nil
	case master.EventNak:
		return protocol.ErrNak
	case master.EventInvalidParameter:
		return protocol.ErrInvalidParameter
	case master.EventTimedOut:
		return protocol.ErrTimedOut
	case master.EventProtocolError:
		return ev.Err
	default:
		return protocol.Errorf(protocol.KindSequence, "unexpected read outcome %d", ev.Kind)
	}
}

func writeOutcome(ev master.Event) error {
	switch ev.Kind {
	case master.EventWriteAcked:
		return nil
	case master.EventNak:
		return protocol.ErrNak
	case master.EventInvalidParameter:
		return protocol.ErrInvalidParameter
	case master.EventTimedOut:
		return protocol.ErrTimedOut
	case master.EventProtocolError:
		return ev.Err
	default:
		return protocol.Errorf(protocol.KindSequence, "unexpected write outcome %d", ev.Kind)
	}
}
