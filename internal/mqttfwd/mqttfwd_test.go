package mqttfwd

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBusEventJSON(t *testing.T) {
	value := 1500
	ev := BusEvent{
		Time:      time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Kind:      KindRead,
		Station:   43,
		Parameter: 302,
		Value:     &value,
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["kind"] != "read" {
		t.Errorf("kind = %v, want read", decoded["kind"])
	}
	if decoded["station"] != float64(43) {
		t.Errorf("station = %v, want 43", decoded["station"])
	}
	if decoded["value"] != float64(1500) {
		t.Errorf("value = %v, want 1500", decoded["value"])
	}
	if _, present := decoded["error"]; present {
		t.Error("error should be omitted when empty")
	}
}

func TestBusEventJSONOmitsNilValue(t *testing.T) {
	ev := BusEvent{
		Time:      time.Now(),
		Kind:      KindTimeout,
		Station:   7,
		Parameter: 100,
		Error:     "node did not answer",
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(payload)
	if strings.Contains(s, `"value"`) {
		t.Errorf("payload should omit value: %s", s)
	}
	if !strings.Contains(s, `"error":"node did not answer"`) {
		t.Errorf("payload missing error: %s", s)
	}
}
