package transcript

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-memory Store implementation. It is safe for concurrent
// use and intended primarily for testing.
type Memory struct {
	mu    sync.RWMutex
	convs map[string][]Entry
	stamp stamper
}

// NewMemory creates a new in-memory Store.
func NewMemory() *Memory {
	return &Memory{convs: make(map[string][]Entry)}
}

func (m *Memory) Append(_ context.Context, e Entry) error {
	if e.Timestamp == 0 {
		e.Timestamp = m.stamp.next()
	}
	if _, err := entryKey(e.ConversationID, e.Timestamp); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := append(m.convs[e.ConversationID], e)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
	m.convs[e.ConversationID] = entries
	return nil
}

func (m *Memory) Entries(_ context.Context, conversationID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries, ok := m.convs[conversationID]
	if !ok || len(entries) == 0 {
		return nil, ErrNotFound
	}
	return append([]Entry(nil), entries...), nil
}

func (m *Memory) Recent(_ context.Context, conversationID string, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.convs[conversationID]
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return append([]Entry(nil), entries...), nil
}

func (m *Memory) Conversations(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.convs))
	for id, entries := range m.convs {
		if len(entries) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Clear(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, conversationID)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
