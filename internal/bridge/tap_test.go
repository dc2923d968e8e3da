package bridge

import (
	"testing"
	"time"

	"github.com/cth-oso/x328/internal/config"
)

func startTap(t *testing.T, upstream string) *Tap {
	t.Helper()
	tap := NewTap("127.0.0.1:0", upstream, testLogger())
	if err := tap.Start(); err != nil {
		t.Fatalf("tap Start failed: %v", err)
	}
	t.Cleanup(tap.Stop)
	return tap
}

func nextEvent(t *testing.T, tap *Tap) TapEvent {
	t.Helper()
	select {
	case ev := <-tap.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for tap event")
		return TapEvent{}
	}
}

func TestTapObservesTransactions(t *testing.T) {
	server := startServer(t, 43, testStore(t))
	tap := startTap(t, server.Addr().String())

	client, err := Dial(config.BridgeConfig{
		Address:           tap.Addr().String(),
		ConnectTimeoutMs:  1000,
		ResponseTimeoutMs: 1000,
		Retries:           0,
	}, testLogger())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	got, err := client.Read(mustAddr(t, 43), mustParam(t, 302))
	if err != nil {
		t.Fatalf("Read through tap failed: %v", err)
	}
	if got.Int() != 1500 {
		t.Errorf("Read = %d, want 1500", got.Int())
	}

	ev := nextEvent(t, tap)
	if ev.Kind != "read" || ev.Station != 43 || ev.Parameter != 302 {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Value == nil || *ev.Value != 1500 {
		t.Errorf("event value = %v, want 1500", ev.Value)
	}
	if ev.Session == "" {
		t.Error("event session should be set")
	}
	if len(ev.Raw) == 0 {
		t.Error("event raw bytes should be set")
	}

	if err := client.Write(mustAddr(t, 43), mustParam(t, 700), mustValue(t, 7)); err != nil {
		t.Fatalf("Write through tap failed: %v", err)
	}
	ev = nextEvent(t, tap)
	if ev.Kind != "write" || ev.Parameter != 700 {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Value == nil || *ev.Value != 7 {
		t.Errorf("event value = %v, want 7", ev.Value)
	}
}

func TestTapReportsUnansweredCommand(t *testing.T) {
	server := startServer(t, 43, testStore(t))
	tap := startTap(t, server.Addr().String())

	client, err := Dial(config.BridgeConfig{
		Address:           tap.Addr().String(),
		ConnectTimeoutMs:  1000,
		ResponseTimeoutMs: 200,
		Retries:           0,
	}, testLogger())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	// station 7 is not served, so the node stays silent
	if _, err := client.Read(mustAddr(t, 7), mustParam(t, 302)); err == nil {
		t.Fatal("expected read to time out")
	}
	client.Close()

	ev := nextEvent(t, tap)
	if ev.Kind != "timeout" || ev.Station != 7 || ev.Parameter != 302 {
		t.Errorf("unexpected event: %+v", ev)
	}
}
