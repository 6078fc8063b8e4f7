package vars

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store implementation. It backs tests and
// hosts that keep variable state in their own documents.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]string),
	}
}

func docKey(sessionID uuid.UUID, scope Scope, character string) string {
	key := sessionID.String() + ":" + string(scope)
	if scope == ScopeCharacter {
		key += ":" + character
	}
	return key
}

func (m *MemoryStore) Get(ctx context.Context, sessionID uuid.UUID, scope Scope, character, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[docKey(sessionID, scope, character)]
	if !ok {
		return "", false, nil
	}
	value, ok := doc[key]
	return value, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, sessionID uuid.UUID, scope Scope, character, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dk := docKey(sessionID, scope, character)
	doc, ok := m.docs[dk]
	if !ok {
		doc = make(map[string]string)
		m.docs[dk] = doc
	}
	doc[key] = value
	return nil
}
