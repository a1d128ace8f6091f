package session

import (
	"sync"

	"github.com/example/skillbook/internal/position"
)

// Store holds the resolved position for each active discovery session.
// A position is read-only once produced; a refresh replaces the whole value.
type Store interface {
	Put(sessionID string, pos position.ResolvedPosition)
	Get(sessionID string) (position.ResolvedPosition, bool)
}

type Memory struct {
	mu        sync.RWMutex
	positions map[string]position.ResolvedPosition
}

func NewMemory() *Memory {
	return &Memory{positions: make(map[string]position.ResolvedPosition)}
}

func (m *Memory) Put(sessionID string, pos position.ResolvedPosition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[sessionID] = pos
}

func (m *Memory) Get(sessionID string) (position.ResolvedPosition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[sessionID]
	return p, ok
}
