// Package storage provides the durable key-value slots the session store
// mirrors its state into. Persistence is best effort: the session store
// logs and swallows every error returned here, so implementations are free
// to fail without affecting in-memory operation.
package storage

import "sync"

// Store is a durable key-value slot.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Set writes the value for key, overwriting any previous value.
	Set(key, value string) error

	// Remove deletes the value for key. Removing an absent key is not an
	// error.
	Remove(key string) error
}

// Memory is an in-process Store. It is the default backend and is safe for
// concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
