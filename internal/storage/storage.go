package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pmaring/ruletick/pkg/rules"
	"github.com/pmaring/ruletick/pkg/timer"
)

// SessionState is the persisted gamestate document for one session. The
// timers section round-trips the active timer snapshots bit-exactly.
type SessionState struct {
	Timers timer.State `json:"timers"`
}

// HealthChecker defines basic health check capabilities
type HealthChecker interface {
	// Ping tests the service connection
	Ping(ctx context.Context) error
}

// Closer defines cleanup capabilities
type Closer interface {
	// Close closes the service connection
	Close() error
}

// Storage defines the interface for session-state persistence and rule
// loading.
type Storage interface {
	HealthChecker
	Closer

	// SaveSessionState saves the session's gamestate document.
	SaveSessionState(ctx context.Context, id uuid.UUID, state *SessionState) error

	// LoadSessionState retrieves a session's gamestate document.
	// Returns nil if the document doesn't exist.
	LoadSessionState(ctx context.Context, id uuid.UUID) (*SessionState, error)

	// DeleteSessionState removes a session's gamestate document.
	DeleteSessionState(ctx context.Context, id uuid.UUID) error

	// ListRuleSets maps rule-set names to their filenames.
	ListRuleSets(ctx context.Context) (map[string]string, error)

	// GetRuleSet loads the rule definitions from one rule-set file.
	GetRuleSet(ctx context.Context, filename string) ([]*rules.Rule, error)

	// AcquireSessionLock attempts to take the save lock for a session.
	// Returns false if another process holds it.
	AcquireSessionLock(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) (bool, error)

	// ReleaseSessionLock releases the save lock if owner still holds it.
	ReleaseSessionLock(ctx context.Context, id uuid.UUID, owner string) error
}
