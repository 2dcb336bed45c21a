package quota

import (
	"context"
	"errors"
	"sync"

	"github.com/loggate/loggate/internal/core"
)

// MemoryBackend keeps records in process memory. Records do not survive a
// restart.
type MemoryBackend struct {
	mu     sync.Mutex
	states map[string]core.QuotaState
}

func (m *MemoryBackend) GetQuota(ctx context.Context, name string) (*core.QuotaState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[name]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (m *MemoryBackend) PutQuota(ctx context.Context, name string, state *core.QuotaState) error {
	if state == nil {
		return errors.New("quota state is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.states == nil {
		m.states = make(map[string]core.QuotaState)
	}
	m.states[name] = *state
	return nil
}

// UpdateQuota runs fn and stores its result while holding the backend lock.
func (m *MemoryBackend) UpdateQuota(ctx context.Context, name string, fn func(current *core.QuotaState) (*core.QuotaState, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current *core.QuotaState
	if state, ok := m.states[name]; ok {
		current = &state
	}

	next, err := fn(current)
	if err != nil || next == nil {
		return err
	}
	if m.states == nil {
		m.states = make(map[string]core.QuotaState)
	}
	m.states[name] = *next
	return nil
}
