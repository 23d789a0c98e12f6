package kv

import "sync"

// Memory is an in-process Adapter. Its contents do not survive the process.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	writes map[string]int

	// SetErr, when non-nil, is returned by every Set and nothing is written
	SetErr error
}

// NewMemory creates an empty Memory adapter
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]string),
		writes: make(map[string]int),
	}
}

// Get returns the value stored under key
func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SetErr != nil {
		return m.SetErr
	}
	m.values[key] = value
	m.writes[key]++
	return nil
}

// FailWrites makes subsequent Set calls return err (nil restores writes)
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetErr = err
}

// Writes returns how many successful Set calls key has received
func (m *Memory) Writes(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes[key]
}
