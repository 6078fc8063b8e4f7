// Package session holds the typed per-session state the scheduler works
// against: scene counter, scene membership, loaded rules, the game clock
// and the variable store handle.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/pmaring/ruletick/pkg/clock"
	"github.com/pmaring/ruletick/pkg/rules"
	"github.com/pmaring/ruletick/pkg/vars"
)

// Session is the state of one game session (one tab in the host UI).
type Session struct {
	ID    uuid.UUID
	Clock *clock.GameClock
	Vars  vars.Store

	mu         sync.Mutex
	scene      int
	characters []string
	rules      []*rules.Rule
}

// New creates a session with a fresh ID.
func New(gameClock *clock.GameClock, store vars.Store) *Session {
	return &Session{
		ID:    uuid.New(),
		Clock: gameClock,
		Vars:  store,
	}
}

// Scene returns the current scene counter.
func (s *Session) Scene() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// AdvanceScene increments the scene counter and returns the new value.
func (s *Session) AdvanceScene() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scene++
	return s.scene
}

// Characters returns a copy of the current scene membership.
func (s *Session) Characters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.characters))
	copy(out, s.characters)
	return out
}

// SetCharacters replaces the scene membership.
func (s *Session) SetCharacters(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characters = make([]string, len(names))
	copy(s.characters, names)
}

// HasCharacter reports whether the named character is in the scene.
func (s *Session) HasCharacter(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.characters {
		if c == name {
			return true
		}
	}
	return false
}

// Rules returns the loaded rule definitions in declaration order.
func (s *Session) Rules() []*rules.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*rules.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// SetRules replaces the loaded rule definitions.
func (s *Session) SetRules(list []*rules.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = make([]*rules.Rule, len(list))
	copy(s.rules, list)
}

// Rule looks up a rule by ID. Returns nil if not loaded.
func (s *Session) Rule(id string) *rules.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.ID == id {
			return r
		}
	}
	return nil
}
