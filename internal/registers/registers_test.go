package registers

import (
	"testing"

	"github.com/cth-oso/x328/internal/config"
	"github.com/cth-oso/x328/internal/x328/protocol"
)

func param(t *testing.T, p int) protocol.Parameter {
	t.Helper()
	out, err := protocol.NewParameter(p)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func value(t *testing.T, v int) protocol.Value {
	t.Helper()
	out, err := protocol.NewValue(v)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestFromSeeds(t *testing.T) {
	store, err := FromSeeds([]config.RegisterSeed{
		{Parameter: 1, Value: 10},
		{Parameter: 2, Value: 20, ReadOnly: true},
		{Parameter: 3, Value: 5, Wide: true},
	})
	if err != nil {
		t.Fatalf("FromSeeds: %v", err)
	}
	if store.Len() != 3 {
		t.Errorf("Len() = %d, want 3", store.Len())
	}

	v, ok := store.Get(param(t, 1))
	if !ok || v.Int() != 10 {
		t.Errorf("Get(1) = %v, %v", v, ok)
	}
	v, _ = store.Get(param(t, 3))
	if v.Format() != protocol.FormatWide {
		t.Error("wide seed should produce a wide value")
	}
}

func TestFromSeedsRejectsBadRanges(t *testing.T) {
	if _, err := FromSeeds([]config.RegisterSeed{{Parameter: 10000, Value: 0}}); err == nil {
		t.Error("expected error for out-of-range parameter")
	}
	if _, err := FromSeeds([]config.RegisterSeed{{Parameter: 1, Value: 1000000}}); err == nil {
		t.Error("expected error for out-of-range value")
	}
}

func TestHandleRead(t *testing.T) {
	store := NewStore()
	store.Seed(param(t, 7), value(t, 42), false)

	if v, ok := store.HandleRead(param(t, 7)); !ok || v.Int() != 42 {
		t.Errorf("HandleRead(7) = %v, %v", v, ok)
	}
	if _, ok := store.HandleRead(param(t, 8)); ok {
		t.Error("HandleRead(8) should report an unknown parameter")
	}
}

func TestHandleWrite(t *testing.T) {
	store := NewStore()
	store.Seed(param(t, 1), value(t, 0), false)
	store.Seed(param(t, 2), value(t, 0), true)

	if got := store.HandleWrite(param(t, 1), value(t, 99)); got != WriteOK {
		t.Errorf("write to rw parameter = %v, want WriteOK", got)
	}
	if v, _ := store.Get(param(t, 1)); v.Int() != 99 {
		t.Errorf("value after write = %d, want 99", v.Int())
	}

	if got := store.HandleWrite(param(t, 2), value(t, 99)); got != WriteReadOnly {
		t.Errorf("write to ro parameter = %v, want WriteReadOnly", got)
	}
	if v, _ := store.Get(param(t, 2)); v.Int() != 0 {
		t.Errorf("read-only value changed to %d", v.Int())
	}

	if got := store.HandleWrite(param(t, 3), value(t, 1)); got != WriteUnknownParameter {
		t.Errorf("write to missing parameter = %v, want WriteUnknownParameter", got)
	}
}

func TestSetBypassesReadOnly(t *testing.T) {
	store := NewStore()
	store.Seed(param(t, 2), value(t, 0), true)

	if err := store.Set(param(t, 2), value(t, 5)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := store.Get(param(t, 2)); v.Int() != 5 {
		t.Errorf("value = %d, want 5", v.Int())
	}

	if err := store.Set(param(t, 9), value(t, 1)); err == nil {
		t.Error("Set on undefined parameter should fail")
	}
}

func TestParametersSorted(t *testing.T) {
	store := NewStore()
	for _, p := range []int{300, 7, 1234, 0} {
		store.Seed(param(t, p), value(t, 0), false)
	}
	params := store.Parameters()
	want := []int{0, 7, 300, 1234}
	if len(params) != len(want) {
		t.Fatalf("len = %d, want %d", len(params), len(want))
	}
	for i, p := range params {
		if int(p) != want[i] {
			t.Errorf("params[%d] = %d, want %d", i, p, want[i])
		}
	}
}
