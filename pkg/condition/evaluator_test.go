package condition

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pmaring/ruletick/pkg/clock"
	"github.com/pmaring/ruletick/pkg/rules"
	"github.com/pmaring/ruletick/pkg/session"
	"github.com/pmaring/ruletick/pkg/vars"
)

// countingStore wraps a Store and counts reads, so short-circuiting is
// observable.
type countingStore struct {
	inner vars.Store
	gets  int
}

func (c *countingStore) Get(ctx context.Context, sessionID uuid.UUID, scope vars.Scope, character, key string) (string, bool, error) {
	c.gets++
	return c.inner.Get(ctx, sessionID, scope, character, key)
}

func (c *countingStore) Set(ctx context.Context, sessionID uuid.UUID, scope vars.Scope, character, key, value string) error {
	return c.inner.Set(ctx, sessionID, scope, character, key, value)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSession(store vars.Store) *session.Session {
	return session.New(clock.New(time.Date(1920, time.June, 1, 14, 30, 45, 0, time.UTC)), store)
}

func varRule(conditionType rules.ConditionType, operator rules.LogicOp, conditions ...rules.Condition) *rules.Rule {
	return &rules.Rule{
		ID:                "r1",
		Enabled:           true,
		Scope:             rules.ScopeGlobal,
		StartTrigger:      rules.TriggerPlayer,
		Interval:          rules.Interval{Seconds: rules.Span{Value: 5}},
		ConditionType:     conditionType,
		ConditionOperator: operator,
		Conditions:        conditions,
	}
}

func TestEvaluate_Always(t *testing.T) {
	s := newTestSession(vars.NewMemoryStore())
	r := varRule(rules.ConditionAlways, "")
	if !Evaluate(context.Background(), r, s, "", testLogger()) {
		t.Error("Always condition should evaluate true")
	}
}

func TestEvaluate_VariableEmptyListIsFalse(t *testing.T) {
	s := newTestSession(vars.NewMemoryStore())
	r := varRule(rules.ConditionVariable, "")
	if Evaluate(context.Background(), r, s, "", testLogger()) {
		t.Error("Variable condition with no rows should evaluate false")
	}
}

func TestEvaluate_Operators(t *testing.T) {
	ctx := context.Background()
	store := vars.NewMemoryStore()
	s := newTestSession(store)

	store.Set(ctx, s.ID, vars.ScopeGlobal, "", "count", "10")
	store.Set(ctx, s.ID, vars.ScopeGlobal, "", "name", "Black Pearl")
	store.Set(ctx, s.ID, vars.ScopeGlobal, "", "empty", "")

	tests := []struct {
		name     string
		row      rules.Condition
		expected bool
	}{
		{"numeric eq", cond("count", rules.OpEq, "10"), true},
		{"numeric eq float form", cond("count", rules.OpEq, "10.0"), true},
		{"numeric gt", cond("count", rules.OpGt, "9"), true},
		{"numeric lt false", cond("count", rules.OpLt, "9"), false},
		{"numeric gte", cond("count", rules.OpGte, "10"), true},
		{"numeric lte", cond("count", rules.OpLte, "10"), true},
		{"numeric neq", cond("count", rules.OpNeq, "11"), true},
		{"string eq case-insensitive", cond("name", rules.OpEq, "black pearl"), true},
		{"string neq", cond("name", rules.OpNeq, "Flying Dutchman"), true},
		{"contains case-insensitive", cond("name", rules.OpContains, "PEARL"), true},
		{"not contains", cond("name", rules.OpNotContains, "dutchman"), true},
		{"exists", cond("name", rules.OpExists, ""), true},
		{"exists empty string false", cond("empty", rules.OpExists, ""), false},
		{"not exists empty string", cond("empty", rules.OpNotExists, ""), true},
		{"absent eq false", cond("missing", rules.OpEq, "x"), false},
		{"absent neq true", cond("missing", rules.OpNeq, "x"), true},
		{"absent gt false", cond("missing", rules.OpGt, "0"), false},
		{"absent contains false", cond("missing", rules.OpContains, "x"), false},
		{"absent not exists true", cond("missing", rules.OpNotExists, ""), true},
		{"absent exists false", cond("missing", rules.OpExists, ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := varRule(rules.ConditionVariable, rules.LogicAnd, tt.row)
			got := Evaluate(ctx, r, s, "", testLogger())
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func cond(name, operator, value string) rules.Condition {
	return rules.Condition{
		Type:     rules.ConditionVar,
		Scope:    vars.ScopeGlobal,
		Name:     name,
		Operator: operator,
		Value:    value,
	}
}

func TestEvaluate_ShortCircuitUnderGlobalAnd(t *testing.T) {
	ctx := context.Background()
	counting := &countingStore{inner: vars.NewMemoryStore()}
	s := newTestSession(counting)

	counting.inner.Set(ctx, s.ID, vars.ScopeGlobal, "", "flag", "yes")

	// First row false, second row would be true via OR. Under a global
	// AND operator the chain stops at the first false row.
	r := varRule(rules.ConditionVariable, rules.LogicAnd,
		cond("flag", rules.OpEq, "no"),
		withLogic(cond("flag", rules.OpEq, "yes"), rules.LogicOr),
	)

	if Evaluate(ctx, r, s, "", testLogger()) {
		t.Error("Expected false under global AND with a false row")
	}
	if counting.gets != 1 {
		t.Errorf("Expected evaluation to stop after 1 read, got %d", counting.gets)
	}
}

func TestEvaluate_OrFoldsFully(t *testing.T) {
	ctx := context.Background()
	counting := &countingStore{inner: vars.NewMemoryStore()}
	s := newTestSession(counting)

	counting.inner.Set(ctx, s.ID, vars.ScopeGlobal, "", "flag", "yes")

	r := varRule(rules.ConditionVariable, rules.LogicOr,
		cond("flag", rules.OpEq, "no"),
		withLogic(cond("flag", rules.OpEq, "yes"), rules.LogicOr),
	)

	if !Evaluate(ctx, r, s, "", testLogger()) {
		t.Error("Expected true: false OR true")
	}
	if counting.gets != 2 {
		t.Errorf("Expected both rows evaluated under global OR, got %d reads", counting.gets)
	}
}

func withLogic(c rules.Condition, logic rules.LogicOp) rules.Condition {
	c.Logic = logic
	return c
}

func TestEvaluate_CharacterScopeUsesBoundCharacter(t *testing.T) {
	ctx := context.Background()
	store := vars.NewMemoryStore()
	s := newTestSession(store)

	store.Set(ctx, s.ID, vars.ScopeCharacter, "Bob", "mood", "angry")

	row := rules.Condition{
		Type:     rules.ConditionVar,
		Scope:    vars.ScopeCharacter,
		Name:     "mood",
		Operator: rules.OpEq,
		Value:    "angry",
	}
	r := varRule(rules.ConditionVariable, rules.LogicAnd, row)

	if !Evaluate(ctx, r, s, "Bob", testLogger()) {
		t.Error("Expected bound character's variable to match")
	}
	if Evaluate(ctx, r, s, "Molly", testLogger()) {
		t.Error("Expected other character's evaluation to fail")
	}

	// An explicit row character overrides the binding
	row.Character = "Bob"
	r = varRule(rules.ConditionVariable, rules.LogicAnd, row)
	if !Evaluate(ctx, r, s, "Molly", testLogger()) {
		t.Error("Explicit row character should override the bound character")
	}
}

func TestEvaluate_GameTimeRows(t *testing.T) {
	// Session clock is pinned at 1920-06-01 14:30:45.
	s := newTestSession(vars.NewMemoryStore())

	tests := []struct {
		name     string
		row      rules.Condition
		expected bool
	}{
		{"hour at", timeCond(rules.FieldHour, rules.OpAt, "14"), true},
		{"hour before", timeCond(rules.FieldHour, rules.OpBefore, "15"), true},
		{"hour before strict", timeCond(rules.FieldHour, rules.OpBefore, "14"), false},
		{"hour after", timeCond(rules.FieldHour, rules.OpAfter, "13"), true},
		{"minute at", timeCond(rules.FieldMinute, rules.OpAt, "30"), true},
		{"second after", timeCond(rules.FieldSecond, rules.OpAfter, "44"), true},
		{"date at", timeCond(rules.FieldDate, rules.OpAt, "1"), true},
		{"month at", timeCond(rules.FieldMonth, rules.OpAt, "6"), true},
		{"year at", timeCond(rules.FieldYear, rules.OpAt, "1920"), true},
		{"unparseable target false", timeCond(rules.FieldHour, rules.OpAt, "noon"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := varRule(rules.ConditionVariable, rules.LogicAnd, tt.row)
			got := Evaluate(context.Background(), r, s, "", testLogger())
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func timeCond(field, operator, value string) rules.Condition {
	return rules.Condition{
		Type:     rules.ConditionGameTime,
		Name:     field,
		Operator: operator,
		Value:    value,
	}
}
