package bridge

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cth-oso/x328/internal/config"
	"github.com/cth-oso/x328/internal/logging"
	"github.com/cth-oso/x328/internal/registers"
	"github.com/cth-oso/x328/internal/x328/protocol"
)

func testLogger() *logging.Logger {
	logger, _ := logging.NewLogger(logging.LogLevelSilent, "")
	return logger
}

func testStore(t *testing.T) *registers.Store {
	t.Helper()
	store := registers.NewStore()
	store.Seed(mustParam(t, 302), mustValue(t, 1500), true)
	store.Seed(mustParam(t, 700), mustValue(t, 0), false)
	return store
}

func mustParam(t *testing.T, n int) protocol.Parameter {
	t.Helper()
	p, err := protocol.NewParameter(n)
	if err != nil {
		t.Fatalf("NewParameter(%d): %v", n, err)
	}
	return p
}

func mustValue(t *testing.T, n int) protocol.Value {
	t.Helper()
	v, err := protocol.NewValue(n)
	if err != nil {
		t.Fatalf("NewValue(%d): %v", n, err)
	}
	return v
}

func mustAddr(t *testing.T, n int) protocol.Address {
	t.Helper()
	a, err := protocol.NewAddress(n)
	if err != nil {
		t.Fatalf("NewAddress(%d): %v", n, err)
	}
	return a
}

func startServer(t *testing.T, station int, store *registers.Store) *NodeServer {
	t.Helper()
	cfg := config.CreateDefaultNodeConfig()
	cfg.Node.ListenAddress = "127.0.0.1:0"
	cfg.Node.Station = station
	cfg.Node.ConnectionTimeoutMs = 2000

	server, err := NewNodeServer(cfg, store, testLogger())
	if err != nil {
		t.Fatalf("NewNodeServer failed: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

func dialServer(t *testing.T, server *NodeServer) *Client {
	t.Helper()
	client, err := Dial(config.BridgeConfig{
		Address:           server.Addr().String(),
		ConnectTimeoutMs:  1000,
		ResponseTimeoutMs: 500,
		Retries:           1,
	}, testLogger())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestReadWriteRoundTrip(t *testing.T) {
	store := testStore(t)
	server := startServer(t, 43, store)
	client := dialServer(t, server)
	addr := mustAddr(t, 43)

	got, err := client.Read(addr, mustParam(t, 302))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Int() != 1500 {
		t.Errorf("Read = %d, want 1500", got.Int())
	}

	if err := client.Write(addr, mustParam(t, 700), mustValue(t, 42)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err = client.Read(addr, mustParam(t, 700))
	if err != nil {
		t.Fatalf("Read after write failed: %v", err)
	}
	if got.Int() != 42 {
		t.Errorf("Read after write = %d, want 42", got.Int())
	}
}

func TestWriteRejections(t *testing.T) {
	store := testStore(t)
	server := startServer(t, 43, store)
	client := dialServer(t, server)
	addr := mustAddr(t, 43)

	err := client.Write(addr, mustParam(t, 302), mustValue(t, 9))
	if !errors.Is(err, protocol.ErrNak) {
		t.Errorf("write to read-only parameter: err = %v, want NAK", err)
	}

	err = client.Write(addr, mustParam(t, 9999), mustValue(t, 9))
	if !errors.Is(err, protocol.ErrInvalidParameter) {
		t.Errorf("write to undefined parameter: err = %v, want invalid parameter", err)
	}
}

func TestReadUndefinedParameter(t *testing.T) {
	server := startServer(t, 43, testStore(t))
	client := dialServer(t, server)

	_, err := client.Read(mustAddr(t, 43), mustParam(t, 9999))
	if !errors.Is(err, protocol.ErrInvalidParameter) {
		t.Errorf("err = %v, want invalid parameter", err)
	}
}

func TestForeignAddressTimesOut(t *testing.T) {
	server := startServer(t, 43, testStore(t))
	client := dialServer(t, server)
	client.timeout = 100 * time.Millisecond
	client.retries = 0

	_, err := client.Read(mustAddr(t, 7), mustParam(t, 302))
	if !errors.Is(err, protocol.ErrTimedOut) {
		t.Errorf("err = %v, want timed out", err)
	}
}

func TestWildcardStationAnswersAll(t *testing.T) {
	server := startServer(t, 0, testStore(t))
	client := dialServer(t, server)

	for _, station := range []int{1, 43, 99} {
		got, err := client.Read(mustAddr(t, station), mustParam(t, 302))
		if err != nil {
			t.Fatalf("Read station %d failed: %v", station, err)
		}
		if got.Int() != 1500 {
			t.Errorf("Read station %d = %d, want 1500", station, got.Int())
		}
	}
}

func TestReadAgainOverBridge(t *testing.T) {
	store := registers.NewStore()
	store.Seed(mustParam(t, 10), mustValue(t, 100), false)
	store.Seed(mustParam(t, 11), mustValue(t, 101), false)
	server := startServer(t, 5, store)
	client := dialServer(t, server)
	addr := mustAddr(t, 5)

	got, err := client.Read(addr, mustParam(t, 10))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Int() != 100 {
		t.Errorf("Read = %d, want 100", got.Int())
	}

	got, err = client.ReadAgain(addr, mustParam(t, 11))
	if err != nil {
		t.Fatalf("ReadAgain failed: %v", err)
	}
	if got.Int() != 101 {
		t.Errorf("ReadAgain = %d, want 101", got.Int())
	}
}

func TestConcurrentClients(t *testing.T) {
	store := testStore(t)
	server := startServer(t, 43, store)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, err := Dial(config.BridgeConfig{
				Address:           server.Addr().String(),
				ConnectTimeoutMs:  1000,
				ResponseTimeoutMs: 1000,
				Retries:           1,
			}, testLogger())
			if err != nil {
				errs <- err
				return
			}
			defer client.Close()
			for j := 0; j < 10; j++ {
				if _, err := client.Read(mustAddr(t, 43), mustParam(t, 302)); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent read failed: %v", err)
	}
}

func TestConnectionLimit(t *testing.T) {
	cfg := config.CreateDefaultNodeConfig()
	cfg.Node.ListenAddress = "127.0.0.1:0"
	cfg.Node.MaxConnections = 1

	server, err := NewNodeServer(cfg, testStore(t), testLogger())
	if err != nil {
		t.Fatalf("NewNodeServer failed: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer server.Stop()

	first, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("first dial failed: %v", err)
	}
	defer first.Close()

	// the second connection is rejected; the server closes it right away
	second, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("second dial failed: %v", err)
	}
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := second.Read(buf); err == nil {
		t.Error("expected second connection to be closed")
	}
}

func TestServerStopWithoutStart(t *testing.T) {
	server, err := NewNodeServer(config.CreateDefaultNodeConfig(), testStore(t), testLogger())
	if err != nil {
		t.Fatalf("NewNodeServer failed: %v", err)
	}
	if err := server.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestDialRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	_, err = Dial(config.BridgeConfig{Address: addr, ConnectTimeoutMs: 500}, testLogger())
	if err == nil {
		t.Fatal("expected dial error")
	}
}
