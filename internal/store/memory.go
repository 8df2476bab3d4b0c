package store

import (
	"context"
	"sync"

	"classcal/internal/model"
)

// Memory is a process-local Store.
type Memory struct {
	mu     sync.RWMutex
	defs   []model.EventDefinition
	closed bool
}

func NewMemory(defs []model.EventDefinition) *Memory {
	return &Memory{defs: clone(defs)}
}

func (m *Memory) Load(_ context.Context) ([]model.EventDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return clone(m.defs), nil
}

func (m *Memory) Save(_ context.Context, defs []model.EventDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.defs = clone(defs)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
