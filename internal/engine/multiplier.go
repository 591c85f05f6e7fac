package engine

import "sync"

// Multipliers tracks the live multiplier of each in-flight round, keyed by
// table. A missing entry means the table has nothing to cash out of right now.
type Multipliers struct {
	mu      sync.RWMutex
	byTable map[string]int64
}

func NewMultipliers() *Multipliers {
	return &Multipliers{byTable: make(map[string]int64)}
}

func (m *Multipliers) Set(tableID string, x100 int64) {
	m.mu.Lock()
	m.byTable[tableID] = x100
	m.mu.Unlock()
}

func (m *Multipliers) Clear(tableID string) {
	m.mu.Lock()
	delete(m.byTable, tableID)
	m.mu.Unlock()
}

func (m *Multipliers) CurrentMultiplier(tableID string) (int64, bool) {
	m.mu.RLock()
	x, ok := m.byTable[tableID]
	m.mu.RUnlock()
	return x, ok
}
