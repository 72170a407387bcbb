// Package counter provides CounterStore backends for the visit counter.
package counter

import (
	"context"
	"sync"

	"github.com/magiconsole/magi"
)

// Memory is an in-process CounterStore. Counts are lost on restart.
type Memory struct {
	mu     sync.Mutex
	counts map[string]int64
}

var _ magi.CounterStore = (*Memory)(nil)

// NewMemory creates an empty in-memory counter store.
func NewMemory() *Memory {
	return &Memory{counts: make(map[string]int64)}
}

// Seed sets a counter, e.g. to carry a count over from another store.
func (m *Memory) Seed(name string, v int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name] = v
}

func (m *Memory) Incr(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	return m.counts[name], nil
}

func (m *Memory) Get(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name], nil
}
