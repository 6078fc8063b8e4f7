package vars

import (
	"context"

	"github.com/google/uuid"
)

// Scope identifies which variable document a key resolves against.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeCharacter Scope = "character"
	ScopePlayer    Scope = "player"
	ScopeSetting   Scope = "setting"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeCharacter, ScopePlayer, ScopeSetting:
		return true
	}
	return false
}

// Store is a scoped key/value store for session variables. Character scope
// requires a character name; the other scopes ignore it.
//
// Get returns ok=false when the key (or the backing document) is absent.
// Implementations treat unreadable documents as absent rather than failing
// a read.
type Store interface {
	Get(ctx context.Context, sessionID uuid.UUID, scope Scope, character, key string) (value string, ok bool, err error)
	Set(ctx context.Context, sessionID uuid.UUID, scope Scope, character, key, value string) error
}
