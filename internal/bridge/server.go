// Package bridge owns the TCP transports around the sans-IO engine: a
// node-simulator server that answers X3.28 commands from a register store,
// and a controller-side client that runs transactions against a serial
// bridge with timeouts and retries.
package bridge

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/cth-oso/x328/internal/config"
	"github.com/cth-oso/x328/internal/logging"
	"github.com/cth-oso/x328/internal/registers"
	"github.com/cth-oso/x328/internal/x328/node"
	"github.com/cth-oso/x328/internal/x328/protocol"
)

// NodeServer serves a simulated X3.28 node over TCP. Each accepted
// connection behaves like a dedicated serial line: it gets its own node
// state machine, all of them answering from the same register store.
type NodeServer struct {
	cfg    *config.NodeConfig
	store  *registers.Store
	logger *logging.Logger

	addr     protocol.Address
	listener *net.TCPListener
	pool     *ants.Pool
	wg       sync.WaitGroup
	events   chan TapEvent

	mu     sync.Mutex
	closed bool
}

// NewNodeServer builds a server from a validated node configuration.
func NewNodeServer(cfg *config.NodeConfig, store *registers.Store, logger *logging.Logger) (*NodeServer, error) {
	addr, err := protocol.NewAddress(cfg.Node.Station)
	if err != nil {
		return nil, err
	}
	return &NodeServer{
		cfg:    cfg,
		store:  store,
		logger: logger,
		addr:   addr,
		events: make(chan TapEvent, 256),
	}, nil
}

// Events returns the stream of requests the server has answered. The
// channel is never closed; events are dropped when nobody consumes them.
func (s *NodeServer) Events() <-chan TapEvent {
	return s.events
}

func (s *NodeServer) emit(ev TapEvent) {
	ev.Time = time.Now()
	select {
	case s.events <- ev:
	default:
	}
}

// Start binds the listen address and begins accepting connections.
func (s *NodeServer) Start() error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", s.cfg.Node.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	s.listener, err = net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("listen TCP: %w", err)
	}

	s.pool, err = ants.NewPool(s.cfg.Node.MaxConnections, ants.WithNonblocking(true))
	if err != nil {
		s.listener.Close()
		return fmt.Errorf("create connection pool: %w", err)
	}

	s.logger.Info("Node %d listening on %s (%d registers, max %d connections)",
		s.cfg.Node.Station, s.listener.Addr(), s.store.Len(), s.cfg.Node.MaxConnections)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound address after Start.
func (s *NodeServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener, waits for in-flight connections to drain and
// releases the pool.
func (s *NodeServer) Stop() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	if s.pool != nil {
		s.pool.Release()
	}
	s.logger.Info("Node server stopped")
	return nil
}

func (s *NodeServer) stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *NodeServer) acceptLoop() {
	defer s.wg.Done()

	for {
		s.listener.SetDeadline(time.Now().Add(1 * time.Second))
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				if s.stopping() {
					return
				}
				continue
			}
			if s.stopping() {
				return
			}
			s.logger.Error("Accept error: %v", err)
			continue
		}

		s.wg.Add(1)
		err = s.pool.Submit(func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		})
		if err != nil {
			s.wg.Done()
			s.logger.Error("Rejecting connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
		}
	}
}

func (s *NodeServer) handleConnection(conn *net.TCPConn) {
	defer conn.Close()

	session := uuid.NewString()
	remote := conn.RemoteAddr().String()
	s.logger.Info("Session %s opened from %s", session, remote)

	n := node.New(s.addr)
	idle := time.Duration(s.cfg.Node.ConnectionTimeoutMs) * time.Millisecond
	readBuf := make([]byte, 256)

	for {
		conn.SetReadDeadline(time.Now().Add(idle))

		count, err := conn.Read(readBuf)
		if err != nil {
			if err == io.EOF {
				s.logger.Info("Session %s closed by client", session)
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				s.logger.Info("Session %s idle for %s, closing", session, idle)
				return
			}
			if s.stopping() {
				return
			}
			s.logger.Error("Session %s read error: %v", session, err)
			return
		}
		if count == 0 {
			continue
		}

		s.logger.LogFrame(fmt.Sprintf("session %s rx", session), readBuf[:count])

		req, err := n.Feed(readBuf[:count])
		if err != nil {
			// serve answers every request, so a pending one here means
			// the engine and this loop disagree; start the node over
			s.logger.Error("Session %s: %v", session, err)
			n.Reset()
			continue
		}
		reply, err := s.serve(n, req, session)
		if err != nil {
			s.logger.Error("Session %s: %v", session, err)
			continue
		}
		if len(reply) == 0 {
			continue
		}

		s.logger.LogFrame(fmt.Sprintf("session %s tx", session), reply)
		if _, err := conn.Write(reply); err != nil {
			s.logger.Error("Session %s write error: %v", session, err)
			return
		}
	}
}

// serve maps one decoded request onto the register store and returns the
// bytes to put on the wire, if any.
func (s *NodeServer) serve(n *node.Node, req node.Request, session string) ([]byte, error) {
	ev := TapEvent{Station: int(req.Address), Parameter: int(req.Parameter), Session: session}

	switch req.Kind {
	case node.RequestRead:
		ev.Kind = "read"
		value, ok := s.store.HandleRead(req.Parameter)
		if !ok {
			s.logger.Verbose("Read of undefined parameter %04d", int(req.Parameter))
			ev.Err = "invalid parameter"
			s.emit(ev)
			return n.RespondInvalidParameter()
		}
		s.logger.Verbose("Read parameter %04d -> %d", int(req.Parameter), value.Int())
		v := value.Int()
		ev.Value = &v
		s.emit(ev)
		return n.RespondValue(value)

	case node.RequestWrite:
		ev.Kind = "write"
		switch s.store.HandleWrite(req.Parameter, req.Value) {
		case registers.WriteOK:
			s.logger.Verbose("Write parameter %04d = %d", int(req.Parameter), req.Value.Int())
			v := req.Value.Int()
			ev.Value = &v
			s.emit(ev)
			return n.Acknowledge()
		case registers.WriteReadOnly:
			s.logger.Verbose("Write to read-only parameter %04d rejected", int(req.Parameter))
			ev.Err = "parameter is read-only"
			s.emit(ev)
			return n.RespondNak()
		default:
			s.logger.Verbose("Write to undefined parameter %04d", int(req.Parameter))
			ev.Err = "invalid parameter"
			s.emit(ev)
			return n.RespondInvalidParameter()
		}

	case node.RequestReply:
		return req.Reply, nil

	default:
		return nil, nil
	}
}
