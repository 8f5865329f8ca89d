package testutil

import (
	"sync"
)

// StubBackend is a network backend returning canned outputs.
type StubBackend struct {
	Err     error
	Outputs []float32
	Inputs  [][]float32
	mu      sync.Mutex
	closed  bool
}

// NewStubBackend returns a backend that always produces outputs.
func NewStubBackend(outputs ...float32) *StubBackend {
	return &StubBackend{Outputs: outputs}
}

// Run records input and returns the canned outputs.
func (b *StubBackend) Run(input []float32) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Inputs = append(b.Inputs, input)
	if b.Err != nil {
		return nil, b.Err
	}
	out := make([]float32, len(b.Outputs))
	copy(out, b.Outputs)
	return out, nil
}

// Close marks the backend closed.
func (b *StubBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Calls returns how many times Run was invoked.
func (b *StubBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Inputs)
}

// Closed reports whether Close was called.
func (b *StubBackend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
