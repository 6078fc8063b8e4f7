package action

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pmaring/ruletick/pkg/clock"
	"github.com/pmaring/ruletick/pkg/rules"
	"github.com/pmaring/ruletick/pkg/session"
	"github.com/pmaring/ruletick/pkg/vars"
)

// stubHandlers records handler invocations.
type stubHandlers struct {
	mu            sync.Mutex
	narratorPosts int
	actorPosts    []string
	gameOvers     []string
	generated     string
}

func (h *stubHandlers) PostNarrator(ctx context.Context, s *session.Session, systemMessage string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.narratorPosts++
	return nil
}

func (h *stubHandlers) PostActor(ctx context.Context, s *session.Session, character, systemMessage string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actorPosts = append(h.actorPosts, character)
	return nil
}

func (h *stubHandlers) GenerateValue(ctx context.Context, instructions, current, variable string, scope vars.Scope) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generated, nil
}

func (h *stubHandlers) GameOver(ctx context.Context, s *session.Session, message string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gameOvers = append(h.gameOvers, message)
	return nil
}

// timestampStore records the time of each write.
type timestampStore struct {
	vars.Store
	mu     sync.Mutex
	writes []time.Time
}

func (s *timestampStore) Set(ctx context.Context, sessionID uuid.UUID, scope vars.Scope, character, key, value string) error {
	s.mu.Lock()
	s.writes = append(s.writes, time.Now())
	s.mu.Unlock()
	return s.Store.Set(ctx, sessionID, scope, character, key, value)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSession(store vars.Store) *session.Session {
	return session.New(clock.New(time.Now()), store)
}

func testRule(actions ...rules.Action) *rules.Rule {
	return &rules.Rule{
		ID:            "r1",
		Enabled:       true,
		Scope:         rules.ScopeGlobal,
		StartTrigger:  rules.TriggerPlayer,
		Interval:      rules.Interval{Seconds: rules.Span{Value: 5}},
		ConditionType: rules.ConditionAlways,
		Actions:       actions,
	}
}

func setVar(variable, value string, op rules.SetVarOp) *rules.SetVarAction {
	return &rules.SetVarAction{
		Scope:    vars.ScopeGlobal,
		Variable: variable,
		Op:       op,
		Value:    value,
	}
}

func TestRunner_ActionsRunInOrderWithDelay(t *testing.T) {
	ctx := context.Background()
	ts := &timestampStore{Store: vars.NewMemoryStore()}
	s := testSession(ts)

	delay := 30 * time.Millisecond
	runner := NewRunner(&stubHandlers{}, delay, testLogger())

	rule := testRule(
		setVar("a", "1", rules.SetVarSet),
		setVar("a", "2", rules.SetVarSet),
	)
	runner.Execute(ctx, s, rule, "")

	value, ok, _ := s.Vars.Get(ctx, s.ID, vars.ScopeGlobal, "", "a")
	if !ok || value != "2" {
		t.Errorf("Expected final value 2, got (%q, %v)", value, ok)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.writes) != 2 {
		t.Fatalf("Expected 2 writes, got %d", len(ts.writes))
	}
	if gap := ts.writes[1].Sub(ts.writes[0]); gap < delay {
		t.Errorf("Second action ran after %v, expected at least %v", gap, delay)
	}
}

func TestRunner_SetVarArithmetic(t *testing.T) {
	ctx := context.Background()
	store := vars.NewMemoryStore()
	s := testSession(store)
	runner := NewRunner(&stubHandlers{}, 0, testLogger())

	tests := []struct {
		name     string
		initial  string
		op       rules.SetVarOp
		operand  string
		expected string
	}{
		{"increment", "10", rules.SetVarIncrement, "5", "15"},
		{"decrement", "10", rules.SetVarDecrement, "3", "7"},
		{"multiply", "4", rules.SetVarMultiply, "2.5", "10"},
		{"divide", "10", rules.SetVarDivide, "4", "2.5"},
		{"increment concat fallback", "almost ", rules.SetVarIncrement, "there", "almost there"},
		{"set overwrites", "old", rules.SetVarSet, "new", "new"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.Set(ctx, s.ID, vars.ScopeGlobal, "", "v", tt.initial)
			runner.Execute(ctx, s, testRule(setVar("v", tt.operand, tt.op)), "")

			value, _, _ := store.Get(ctx, s.ID, vars.ScopeGlobal, "", "v")
			if value != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, value)
			}
		})
	}
}

func TestRunner_DivideByZeroLeavesValueUnchanged(t *testing.T) {
	ctx := context.Background()
	store := vars.NewMemoryStore()
	s := testSession(store)
	runner := NewRunner(&stubHandlers{}, 0, testLogger())

	store.Set(ctx, s.ID, vars.ScopeGlobal, "", "v", "10")
	runner.Execute(ctx, s, testRule(setVar("v", "0", rules.SetVarDivide)), "")

	value, _, _ := store.Get(ctx, s.ID, vars.ScopeGlobal, "", "v")
	if value != "10" {
		t.Errorf("Division by zero should leave value unchanged, got %q", value)
	}
}

func TestRunner_SetVarGenerate(t *testing.T) {
	ctx := context.Background()
	store := vars.NewMemoryStore()
	s := testSession(store)
	handlers := &stubHandlers{generated: "a sudden gale"}
	runner := NewRunner(handlers, 0, testLogger())

	act := setVar("weather", "", rules.SetVarGenerate)
	act.Instructions = "Pick dramatic weather."
	runner.Execute(ctx, s, testRule(act), "")

	value, ok, _ := store.Get(ctx, s.ID, vars.ScopeGlobal, "", "weather")
	if !ok || value != "a sudden gale" {
		t.Errorf("Expected generated value, got (%q, %v)", value, ok)
	}
}

func TestRunner_GameOverHaltsSequence(t *testing.T) {
	ctx := context.Background()
	store := vars.NewMemoryStore()
	s := testSession(store)
	handlers := &stubHandlers{}
	runner := NewRunner(handlers, 0, testLogger())

	rule := testRule(
		&rules.GameOverAction{Message: "The end."},
		setVar("after", "1", rules.SetVarSet),
	)
	runner.Execute(ctx, s, rule, "")

	if len(handlers.gameOvers) != 1 {
		t.Fatalf("Expected 1 game over, got %d", len(handlers.gameOvers))
	}
	if _, ok, _ := store.Get(ctx, s.ID, vars.ScopeGlobal, "", "after"); ok {
		t.Error("Actions after game_over should not run")
	}
}

func TestRunner_ActorPostSkippedWhenAbsent(t *testing.T) {
	ctx := context.Background()
	s := testSession(vars.NewMemoryStore())
	s.SetCharacters([]string{"Molly"})

	handlers := &stubHandlers{}
	runner := NewRunner(handlers, 0, testLogger())

	rule := testRule(
		&rules.ActorPostAction{Character: "Bob"},
		&rules.ActorPostAction{Character: "Molly"},
	)
	runner.Execute(ctx, s, rule, "")

	if len(handlers.actorPosts) != 1 || handlers.actorPosts[0] != "Molly" {
		t.Errorf("Expected only Molly's post, got %v", handlers.actorPosts)
	}
}

func TestRunner_NewSceneAdvancesAndNotifies(t *testing.T) {
	ctx := context.Background()
	s := testSession(vars.NewMemoryStore())

	notified := 0
	runner := NewRunner(&stubHandlers{}, 0, testLogger())
	runner.SetSceneChangeFunc(func(ctx context.Context, sess *session.Session) {
		notified++
	})

	runner.Execute(ctx, s, testRule(&rules.NewSceneAction{}), "")

	if s.Scene() != 1 {
		t.Errorf("Expected scene 1, got %d", s.Scene())
	}
	if notified != 1 {
		t.Errorf("Expected 1 scene-change notification, got %d", notified)
	}
}

func TestRunner_UnknownActionSkipped(t *testing.T) {
	ctx := context.Background()
	store := vars.NewMemoryStore()
	s := testSession(store)
	runner := NewRunner(&stubHandlers{}, 0, testLogger())

	rule := testRule(
		&rules.UnknownAction{Type: "play_sound"},
		setVar("after", "1", rules.SetVarSet),
	)
	runner.Execute(ctx, s, rule, "")

	value, ok, _ := store.Get(ctx, s.ID, vars.ScopeGlobal, "", "after")
	if !ok || value != "1" {
		t.Errorf("Sequence should continue past unknown actions, got (%q, %v)", value, ok)
	}
}
