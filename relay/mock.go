package relay

import (
	"fmt"
	"sync"

	"github.com/juju/errors"
)

// MockDriver remembers state in a map and records operations.
// Useful in tests and on development machines without relay hardware.
type MockDriver struct {
	mu    sync.Mutex
	state map[string]bool
	ops   []string

	GetErr error
	SetErr error
}

func NewMockDriver() *MockDriver {
	return &MockDriver{state: make(map[string]bool, 8)}
}

func (m *MockDriver) Get(point string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return false, errors.Trace(m.GetErr)
	}
	m.ops = append(m.ops, fmt.Sprintf("get:%s", point))
	return m.state[point], nil
}

func (m *MockDriver) Set(point string, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return errors.Trace(m.SetErr)
	}
	m.ops = append(m.ops, fmt.Sprintf("set:%s:%t", point, on))
	m.state[point] = on
	return nil
}

// SetState overrides a point bypassing the op log, to model an external
// actor touching the hardware.
func (m *MockDriver) SetState(point string, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[point] = on
}

func (m *MockDriver) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]string, len(m.ops))
	copy(ops, m.ops)
	return ops
}

func (m *MockDriver) ResetOps() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = nil
}
