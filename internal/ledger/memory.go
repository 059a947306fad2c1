package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory keeps day sheets in process memory; for dev and tests.
type Memory struct {
	mu     sync.RWMutex
	sheets map[string][]Entry
}

// NewMemory creates an empty in-memory sheet store.
func NewMemory() *Memory {
	return &Memory{sheets: make(map[string][]Entry)}
}

func sheetKey(subject, day string) string { return subject + "|" + day }

func (m *Memory) Exists(_ context.Context, subject, day string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sheets[sheetKey(subject, day)]
	return ok, nil
}

func (m *Memory) Seed(_ context.Context, subject, day string, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sheetKey(subject, day)
	if _, ok := m.sheets[key]; ok {
		return nil
	}
	sheet := make([]Entry, len(entries))
	copy(sheet, entries)
	m.sheets[key] = sheet
	return nil
}

func (m *Memory) Entries(_ context.Context, subject, day string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sheet := m.sheets[sheetKey(subject, day)]
	out := make([]Entry, len(sheet))
	copy(out, sheet)
	return out, nil
}

func (m *Memory) Get(_ context.Context, subject, day, tokenID string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.sheets[sheetKey(subject, day)] {
		if e.TokenID == tokenID {
			out := e
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) SetPresent(_ context.Context, subject, day, tokenID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet := m.sheets[sheetKey(subject, day)]
	for i := range sheet {
		if sheet[i].TokenID == tokenID && sheet[i].Status == StatusAbsent {
			marked := at
			sheet[i].Status = StatusPresent
			sheet[i].MarkedAt = &marked
			return nil
		}
	}
	return nil
}

func (m *Memory) Append(_ context.Context, subject, day string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sheetKey(subject, day)
	m.sheets[key] = append(m.sheets[key], e)
	return nil
}
