package roster

import (
	"context"
	"sync"
	"time"
)

// Memory keeps the registry in process memory; for dev and tests.
type Memory struct {
	mu       sync.RWMutex
	students map[string][]Student
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{students: make(map[string][]Student)}
}

// Enroll appends the student unless the token id is taken.
func (m *Memory) Enroll(_ context.Context, subject string, st Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.students[subject] {
		if existing.TokenID == st.TokenID {
			return ErrAlreadyEnrolled
		}
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	m.students[subject] = append(m.students[subject], st)
	return nil
}

// Lookup returns the student for a token id, or nil.
func (m *Memory) Lookup(_ context.Context, subject, tokenID string) (*Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, st := range m.students[subject] {
		if st.TokenID == tokenID {
			out := st
			return &out, nil
		}
	}
	return nil, nil
}

// List returns students in enrollment order.
func (m *Memory) List(_ context.Context, subject string) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Student, len(m.students[subject]))
	copy(out, m.students[subject])
	return out, nil
}
