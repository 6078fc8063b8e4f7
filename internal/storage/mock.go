package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pmaring/ruletick/pkg/rules"
)

// MockStorage is an in-memory Storage implementation for tests and
// embedded hosts.
type MockStorage struct {
	mu       sync.Mutex
	states   map[uuid.UUID]*SessionState
	ruleSets map[string]mockRuleSet // by filename
	locks    map[uuid.UUID]string
}

type mockRuleSet struct {
	name  string
	rules []*rules.Rule
}

var _ Storage = (*MockStorage)(nil)

func NewMockStorage() *MockStorage {
	return &MockStorage{
		states:   make(map[uuid.UUID]*SessionState),
		ruleSets: make(map[string]mockRuleSet),
		locks:    make(map[uuid.UUID]string),
	}
}

func (m *MockStorage) Ping(ctx context.Context) error { return nil }
func (m *MockStorage) Close() error                   { return nil }

func (m *MockStorage) SaveSessionState(ctx context.Context, id uuid.UUID, state *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.states[id] = &copied
	return nil
}

func (m *MockStorage) LoadSessionState(ctx context.Context, id uuid.UUID) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[id]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (m *MockStorage) DeleteSessionState(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

// AddRuleSet registers a rule set under the given filename.
func (m *MockStorage) AddRuleSet(filename, name string, list []*rules.Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ruleSets[filename] = mockRuleSet{name: name, rules: list}
}

func (m *MockStorage) ListRuleSets(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.ruleSets))
	for filename, rs := range m.ruleSets {
		out[rs.name] = filename
	}
	return out, nil
}

func (m *MockStorage) GetRuleSet(ctx context.Context, filename string) ([]*rules.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs, ok := m.ruleSets[filename]
	if !ok {
		return nil, fmt.Errorf("rule set not found: %s", filename)
	}
	return rs.rules, nil
}

func (m *MockStorage) AcquireSessionLock(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[id]; held {
		return false, nil
	}
	m.locks[id] = owner
	return true, nil
}

func (m *MockStorage) ReleaseSessionLock(ctx context.Context, id uuid.UUID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[id] == owner {
		delete(m.locks, id)
	}
	return nil
}
