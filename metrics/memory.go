package metrics

import (
	"context"
	"sync"
	"sync/atomic"
)

// Memory 进程内计数器注册表
type Memory struct {
	mu       sync.RWMutex
	counters map[string]*memoryCounter
}

// NewMemory 创建空的内存注册表
func NewMemory() *Memory {
	return &Memory{counters: make(map[string]*memoryCounter)}
}

type memoryCounter struct {
	value atomic.Int64
}

func (c *memoryCounter) Inc(context.Context) error {
	c.value.Add(1)
	return nil
}

func (c *memoryCounter) Count(context.Context) (int64, error) {
	return c.value.Load(), nil
}

func (m *Memory) CounterNames(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.counters))
	for name := range m.counters {
		names = append(names, name)
	}
	return names, nil
}

func (m *Memory) Counter(_ context.Context, name string) (Counter, error) {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if ok {
		return c, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return c, nil
	}
	c = &memoryCounter{}
	m.counters[name] = c
	return c, nil
}

func (m *Memory) Shutdown(context.Context) error {
	return nil
}
