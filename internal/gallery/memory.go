package gallery

import (
	"context"
	"sync"
)

// Memory keeps face records in process memory; for dev and tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]Record
}

// NewMemory creates an empty in-memory face store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]Record)}
}

func (m *Memory) Add(_ context.Context, subject string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[subject] = append(m.records[subject], rec)
	return nil
}

func (m *Memory) Has(_ context.Context, subject, tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records[subject] {
		if rec.TokenID == tokenID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) List(_ context.Context, subject string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.records[subject]))
	copy(out, m.records[subject])
	return out, nil
}

func (m *Memory) Remove(_ context.Context, subject, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := m.records[subject]
	for i, rec := range records {
		if rec.TokenID == tokenID {
			m.records[subject] = append(records[:i:i], records[i+1:]...)
			return nil
		}
	}
	return nil
}
