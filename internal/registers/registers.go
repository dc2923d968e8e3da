package registers

// Parameter store for the node simulator.
//
// X3.28 exposes one flat address space of numbered parameters per station.
// The store answers the two bus operations directly: HandleRead reports
// whether the parameter exists, HandleWrite distinguishes unknown
// parameters (EOT on the wire) from read-only rejections (NAK).

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cth-oso/x328/internal/config"
	"github.com/cth-oso/x328/internal/x328/protocol"
)

// WriteResult classifies the outcome of a write attempt.
type WriteResult int

const (
	// WriteOK means the value was stored.
	WriteOK WriteResult = iota
	// WriteUnknownParameter means the parameter is not defined here.
	WriteUnknownParameter
	// WriteReadOnly means the parameter exists but rejects writes.
	WriteReadOnly
)

type entry struct {
	value    protocol.Value
	readOnly bool
}

// Store holds the parameter values of a simulated station.
type Store struct {
	mu     sync.RWMutex
	params map[protocol.Parameter]entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{params: make(map[protocol.Parameter]entry)}
}

// FromSeeds creates a store populated from config register seeds.
func FromSeeds(seeds []config.RegisterSeed) (*Store, error) {
	s := NewStore()
	for i, seed := range seeds {
		param, err := protocol.NewParameter(seed.Parameter)
		if err != nil {
			return nil, fmt.Errorf("registers[%d]: %w", i, err)
		}
		format := protocol.FormatNormal
		if seed.Wide {
			format = protocol.FormatWide
		}
		value, err := protocol.NewValueFormat(seed.Value, format)
		if err != nil {
			return nil, fmt.Errorf("registers[%d]: %w", i, err)
		}
		s.Seed(param, value, seed.ReadOnly)
	}
	return s, nil
}

// Seed defines a parameter, replacing any previous definition.
func (s *Store) Seed(param protocol.Parameter, value protocol.Value, readOnly bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[param] = entry{value: value, readOnly: readOnly}
}

// Get returns the current value of a parameter.
func (s *Store) Get(param protocol.Parameter) (protocol.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.params[param]
	return e.value, ok
}

// Set stores a value, bypassing the read-only flag. For diagnostics and
// simulation updates, not for bus writes.
func (s *Store) Set(param protocol.Parameter, value protocol.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.params[param]
	if !ok {
		return fmt.Errorf("parameter %04d not defined", param)
	}
	e.value = value
	s.params[param] = e
	return nil
}

// HandleRead answers a bus read request.
func (s *Store) HandleRead(param protocol.Parameter) (protocol.Value, bool) {
	return s.Get(param)
}

// HandleWrite answers a bus write request, honoring the read-only flag.
func (s *Store) HandleWrite(param protocol.Parameter, value protocol.Value) WriteResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.params[param]
	if !ok {
		return WriteUnknownParameter
	}
	if e.readOnly {
		return WriteReadOnly
	}
	e.value = value
	s.params[param] = e
	return WriteOK
}

// Len returns the number of defined parameters.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.params)
}

// Parameters returns the defined parameters in ascending order.
func (s *Store) Parameters() []protocol.Parameter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.Parameter, 0, len(s.params))
	for p := range s.params {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
