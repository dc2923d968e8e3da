package bridge

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cth-oso/x328/internal/logging"
	"github.com/cth-oso/x328/internal/x328/scanner"
)

// TapEvent is one transaction observed on a tapped connection. Value is
// set for successful reads and write requests; Raw holds the wire bytes of
// the transaction, command first.
type TapEvent struct {
	Time      time.Time
	Kind      string // "read", "write", "timeout" or "unexpected"
	Station   int
	Parameter int
	Value     *int
	Err       string
	Session   string
	Raw       []byte
}

// Tap is a transparent TCP proxy between a bus controller and a serial
// bridge. It forwards bytes untouched in both directions and runs them
// through the passive scanner, publishing decoded transactions on Events.
type Tap struct {
	listenAddr   string
	upstreamAddr string
	logger       *logging.Logger
	events       chan TapEvent

	listener *net.TCPListener
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewTap builds a tap that accepts controllers on listenAddr and forwards
// them to the bridge at upstreamAddr.
func NewTap(listenAddr, upstreamAddr string, logger *logging.Logger) *Tap {
	return &Tap{
		listenAddr:   listenAddr,
		upstreamAddr: upstreamAddr,
		logger:       logger,
		events:       make(chan TapEvent, 256),
	}
}

// Events returns the decoded transaction stream. The channel is never
// closed; events are dropped when the consumer falls behind.
func (t *Tap) Events() <-chan TapEvent {
	return t.events
}

// Start binds the listen address and begins proxying.
func (t *Tap) Start() error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", t.listenAddr)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}
	t.listener, err = net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("listen TCP: %w", err)
	}

	t.logger.Info("Tap listening on %s, forwarding to %s", t.listener.Addr(), t.upstreamAddr)
	t.wg.Add(1)
	go t.acceptLoop()
	return nil
}

// Addr returns the bound address after Start.
func (t *Tap) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop closes the listener and waits for proxied connections to drain.
func (t *Tap) Stop() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	if t.listener != nil {
		t.listener.Close()
	}
	t.wg.Wait()
}

func (t *Tap) stopping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Tap) acceptLoop() {
	defer t.wg.Done()
	for {
		t.listener.SetDeadline(time.Now().Add(1 * time.Second))
		conn, err := t.listener.AcceptTCP()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				if t.stopping() {
					return
				}
				continue
			}
			if t.stopping() {
				return
			}
			t.logger.Error("Tap accept error: %v", err)
			continue
		}
		t.wg.Add(1)
		go t.handleConnection(conn)
	}
}

func (t *Tap) handleConnection(client *net.TCPConn) {
	defer t.wg.Done()
	defer client.Close()

	upstream, err := net.Dial("tcp", t.upstreamAddr)
	if err != nil {
		t.logger.Error("Tap dial upstream %s: %v", t.upstreamAddr, err)
		return
	}
	defer upstream.Close()

	session := uuid.NewString()
	t.logger.Info("Tap session %s: %s <-> %s", session, client.RemoteAddr(), t.upstreamAddr)

	tc := &tappedConn{tap: t, scan: scanner.New(), session: session}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		t.pump(client, upstream, tc.feedController)
		upstream.Close()
	}()
	go func() {
		defer wg.Done()
		t.pump(upstream, client, tc.feedNode)
		client.Close()
	}()
	wg.Wait()

	tc.finish()
	t.logger.Info("Tap session %s closed", session)
}

// pump copies src to dst, handing every chunk to observe along the way.
func (t *Tap) pump(src, dst net.Conn, observe func([]byte)) {
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
			observe(buf[:n])
		}
		if err != nil {
			if err != io.EOF && !t.stopping() {
				t.logger.Verbose("Tap read: %v", err)
			}
			return
		}
	}
}

func (t *Tap) emit(ev TapEvent) {
	select {
	case t.events <- ev:
	default:
		t.logger.Verbose("Tap event dropped, consumer too slow")
	}
}

// tappedConn tracks the decode state of one proxied connection. The two
// pump goroutines serialize on mu before touching the scanner.
type tappedConn struct {
	tap     *Tap
	scan    *scanner.Scanner
	session string

	mu      sync.Mutex
	ctrlBuf []byte
	nodeBuf []byte

	pending   bool
	kind      string
	station   int
	parameter int
	value     int
	raw       []byte
}

func (c *tappedConn) feedController(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ctrlBuf = append(c.ctrlBuf, data...)
	for len(c.ctrlBuf) > 0 {
		consumed, ev := c.scan.FeedController(c.ctrlBuf)
		chunk := c.ctrlBuf[:consumed]
		c.ctrlBuf = c.ctrlBuf[consumed:]

		switch ev.Kind {
		case scanner.CtrlNodeTimeout:
			c.emit(TapEvent{
				Kind:      "timeout",
				Station:   c.station,
				Parameter: c.parameter,
				Err:       "node did not answer",
			})
			c.pending = false
			c.raw = c.raw[:0]
			continue

		case scanner.CtrlRead:
			c.begin("read", int(ev.Address), int(ev.Parameter), 0, chunk)

		case scanner.CtrlWrite:
			c.begin("write", int(ev.Address), int(ev.Parameter), ev.Value.Int(), chunk)

		default:
			c.raw = append(c.raw, chunk...)
			// resync garbage must not grow the frame buffer forever
			if !c.pending && len(c.raw) > 64 {
				c.raw = append(c.raw[:0], c.raw[len(c.raw)-64:]...)
			}
		}

		if consumed == 0 {
			return
		}
	}
}

func (c *tappedConn) feedNode(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nodeBuf = append(c.nodeBuf, data...)
	for len(c.nodeBuf) > 0 {
		consumed, ev := c.scan.FeedNode(c.nodeBuf)
		chunk := c.nodeBuf[:consumed]
		c.nodeBuf = c.nodeBuf[consumed:]

		switch ev.Kind {
		case scanner.NodeNone:
			c.raw = append(c.raw, chunk...)
			if consumed == 0 {
				return
			}
			continue

		case scanner.NodeRead, scanner.NodeWrite:
			c.raw = append(c.raw, chunk...)
			out := TapEvent{
				Kind:      c.kind,
				Station:   c.station,
				Parameter: c.parameter,
			}
			if ev.Err != nil {
				out.Err = ev.Err.Error()
			} else if ev.Kind == scanner.NodeRead {
				v := ev.Value.Int()
				out.Value = &v
			} else {
				v := c.value
				out.Value = &v
			}
			c.emit(out)
			c.pending = false
			c.raw = c.raw[:0]

		case scanner.NodeUnexpected:
			c.emit(TapEvent{
				Kind: "unexpected",
				Err:  "node transmitted without an outstanding request",
				Raw:  append([]byte(nil), chunk...),
			})
		}

		if consumed == 0 {
			return
		}
	}
}

// finish reports a command the connection closed on without an answer.
func (c *tappedConn) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		c.emit(TapEvent{
			Kind:      "timeout",
			Station:   c.station,
			Parameter: c.parameter,
			Err:       "connection closed before response",
		})
		c.pending = false
	}
}

// begin opens a transaction; earlier bytes of a command split across
// chunks are already in raw.
func (c *tappedConn) begin(kind string, station, parameter, value int, chunk []byte) {
	c.pending = true
	c.kind = kind
	c.station = station
	c.parameter = parameter
	c.value = value
	c.raw = append(c.raw, chunk...)
}

func (c *tappedConn) emit(ev TapEvent) {
	ev.Time = time.Now()
	ev.Session = c.session
	if ev.Raw == nil {
		ev.Raw = append([]byte(nil), c.raw...)
	}
	c.tap.emit(ev)
}
