package ledger

import (
	"context"
	"sync"

	"github.com/kilianp07/civicdispatch/core/model"
)

// Memory keeps records and history in process memory.
type Memory struct {
	mu      sync.RWMutex
	current map[string]RoundEntry
	history []RoundEntry
}

func NewMemory() *Memory {
	return &Memory{current: make(map[string]RoundEntry)}
}

func (m *Memory) RecordRound(_ context.Context, issueID string, res model.DispatchResult) error {
	e := newEntry(issueID, res)
	m.mu.Lock()
	m.current[issueID] = e
	m.history = append(m.history, e)
	m.mu.Unlock()
	return nil
}

func (m *Memory) CurrentRecord(_ context.Context, issueID string) (SubmissionRecord, error) {
	m.mu.RLock()
	e, ok := m.current[issueID]
	m.mu.RUnlock()
	if !ok {
		return EmptyRecord(issueID), nil
	}
	return e.Record(), nil
}

func (m *Memory) History(_ context.Context, q Query) ([]RoundEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := []RoundEntry{}
	for _, e := range m.history {
		if q.Matches(e) {
			res = append(res, e)
		}
	}
	return res, nil
}

func (m *Memory) Close() error { return nil }
