package session

import (
	"testing"
	"time"

	"github.com/pmaring/ruletick/pkg/clock"
	"github.com/pmaring/ruletick/pkg/rules"
	"github.com/pmaring/ruletick/pkg/vars"
)

func newSession() *Session {
	return New(clock.New(time.Date(1920, time.June, 1, 8, 0, 0, 0, time.UTC)), vars.NewMemoryStore())
}

func TestSession_SceneCounter(t *testing.T) {
	s := newSession()
	if s.Scene() != 0 {
		t.Errorf("Expected scene 0, got %d", s.Scene())
	}
	if got := s.AdvanceScene(); got != 1 {
		t.Errorf("Expected scene 1 after advance, got %d", got)
	}
	if got := s.AdvanceScene(); got != 2 {
		t.Errorf("Expected scene 2 after advance, got %d", got)
	}
}

func TestSession_Characters(t *testing.T) {
	s := newSession()
	s.SetCharacters([]string{"Bob", "Molly"})

	if !s.HasCharacter("Bob") {
		t.Error("Expected Bob in scene")
	}
	if s.HasCharacter("Ghost") {
		t.Error("Unexpected character in scene")
	}

	// Mutating the returned slice must not affect the session.
	chars := s.Characters()
	chars[0] = "Imposter"
	if !s.HasCharacter("Bob") {
		t.Error("Returned slice should be a copy")
	}
}

func TestSession_RuleLookup(t *testing.T) {
	s := newSession()
	s.SetRules([]*rules.Rule{
		{ID: "first"},
		{ID: "second"},
	})

	if r := s.Rule("second"); r == nil || r.ID != "second" {
		t.Errorf("Expected rule second, got %+v", r)
	}
	if r := s.Rule("missing"); r != nil {
		t.Errorf("Expected nil for unknown rule, got %+v", r)
	}

	loaded := s.Rules()
	if len(loaded) != 2 || loaded[0].ID != "first" {
		t.Errorf("Expected declaration order preserved, got %+v", loaded)
	}
}
