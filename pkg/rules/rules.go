// Package rules defines the declarative timer rule model: scheduling scope,
// start triggers, fire intervals, gating conditions and the ordered action
// list a firing executes.
package rules

import (
	"fmt"

	"github.com/pmaring/ruletick/pkg/vars"
)

// Scope determines how many timer instances a rule yields: one per session,
// or one per matching character in the scene.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeCharacter Scope = "character"
)

// Trigger is the scheduling event that causes a rule to be (re-)instantiated.
type Trigger string

const (
	TriggerPlayer       Trigger = "player"
	TriggerCharacter    Trigger = "character"
	TriggerSceneChange  Trigger = "scene_change"
	TriggerNewlyEnabled Trigger = "newly_enabled"
)

// ConditionType gates whether a rule fires.
type ConditionType string

const (
	ConditionAlways   ConditionType = "always"
	ConditionVariable ConditionType = "variable"
)

// LogicOp joins a condition row to the accumulated result of the rows
// before it.
type LogicOp string

const (
	LogicAnd LogicOp = "and"
	LogicOr  LogicOp = "or"
)

// ConditionKind selects what a condition row inspects.
type ConditionKind string

const (
	// ConditionVar compares a scoped variable against a value.
	ConditionVar ConditionKind = "variable"
	// ConditionGameTime compares a cyclical game clock component
	// (second, minute, hour, date, month, year) against a value.
	ConditionGameTime ConditionKind = "game_time"
)

// Variable row operators.
const (
	OpEq          = "=="
	OpNeq         = "!="
	OpGt          = ">"
	OpLt          = "<"
	OpGte         = ">="
	OpLte         = "<="
	OpContains    = "contains"
	OpNotContains = "not contains"
	OpExists      = "exists"
	OpNotExists   = "not exists"
)

// Game-time row operators. These compare the cyclical component only
// (a specific hour of day, not absolute elapsed time).
const (
	OpBefore = "before"
	OpAfter  = "after"
	OpAt     = "at"
)

// Game clock component names for game-time rows.
const (
	FieldSecond = "second"
	FieldMinute = "minute"
	FieldHour   = "hour"
	FieldDate   = "date"
	FieldMonth  = "month"
	FieldYear   = "year"
)

// Condition is one gating row. Variable rows name a scoped variable;
// game-time rows name a clock component.
type Condition struct {
	Type      ConditionKind `json:"type"`
	Scope     vars.Scope    `json:"scope,omitempty"`     // variable rows
	Character string        `json:"character,omitempty"` // overrides the bound character
	Name      string        `json:"name"`                // variable name or clock component
	Operator  string        `json:"operator"`
	Value     string        `json:"value,omitempty"`
	Logic     LogicOp       `json:"logic,omitempty"` // join to the previous rows; defaults to AND
}

// Rule is the immutable-per-firing-cycle description of a timer rule.
type Rule struct {
	ID           string  `json:"id"`
	Enabled      bool    `json:"enabled"`
	Scope        Scope   `json:"scope"`
	StartTrigger Trigger `json:"start_trigger"`
	Recurring    bool    `json:"recurring,omitempty"`

	// Global marks the rule as surviving scene changes even when its
	// instances are character-bound.
	Global bool `json:"global,omitempty"`

	Interval Interval `json:"interval"`

	ConditionType     ConditionType `json:"condition_type"`
	ConditionOperator LogicOp       `json:"condition_operator,omitempty"` // overall operator; AND enables short-circuit
	Conditions        []Condition   `json:"conditions,omitempty"`

	Actions ActionList `json:"actions,omitempty"`
}

// HasCharacterConditions reports whether any condition row reads character
// scope without naming an explicit character. A global-scope rule with such
// rows yields one instance per matching scene character.
func (r *Rule) HasCharacterConditions() bool {
	for _, c := range r.Conditions {
		if c.Type == ConditionVar && c.Scope == vars.ScopeCharacter && c.Character == "" {
			return true
		}
	}
	return false
}

// Validate checks the rule for configuration errors. Invalid rules are
// skipped by the scheduler, never scheduled.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule has no id")
	}
	switch r.Scope {
	case ScopeGlobal, ScopeCharacter:
	default:
		return fmt.Errorf("rule %s: unknown scope %q", r.ID, r.Scope)
	}
	switch r.StartTrigger {
	case TriggerPlayer, TriggerCharacter, TriggerSceneChange:
	default:
		return fmt.Errorf("rule %s: unknown start_trigger %q", r.ID, r.StartTrigger)
	}
	switch r.ConditionType {
	case ConditionAlways, ConditionVariable:
	default:
		return fmt.Errorf("rule %s: unknown condition_type %q", r.ID, r.ConditionType)
	}
	if err := r.Interval.Validate(); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	for i, c := range r.Conditions {
		if err := validateCondition(c); err != nil {
			return fmt.Errorf("rule %s: condition %d: %w", r.ID, i, err)
		}
	}
	for i, a := range r.Actions {
		if err := validateAction(a); err != nil {
			return fmt.Errorf("rule %s: action %d: %w", r.ID, i, err)
		}
	}
	return nil
}

func validateCondition(c Condition) error {
	switch c.Type {
	case ConditionVar:
		if c.Name == "" {
			return fmt.Errorf("variable row has no name")
		}
		if !c.Scope.Valid() {
			return fmt.Errorf("unknown scope %q", c.Scope)
		}
		switch c.Operator {
		case OpEq, OpNeq, OpGt, OpLt, OpGte, OpLte,
			OpContains, OpNotContains, OpExists, OpNotExists:
		default:
			return fmt.Errorf("unknown operator %q", c.Operator)
		}
	case ConditionGameTime:
		switch c.Name {
		case FieldSecond, FieldMinute, FieldHour, FieldDate, FieldMonth, FieldYear:
		default:
			return fmt.Errorf("unknown clock component %q", c.Name)
		}
		switch c.Operator {
		case OpBefore, OpAfter, OpAt:
		default:
			return fmt.Errorf("unknown game-time operator %q", c.Operator)
		}
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	switch c.Logic {
	case "", LogicAnd, LogicOr:
	default:
		return fmt.Errorf("unknown logic %q", c.Logic)
	}
	return nil
}

func validateAction(a Action) error {
	switch act := a.(type) {
	case *SetVarAction:
		if act.Variable == "" {
			return fmt.Errorf("set_var has no variable")
		}
		if !act.Scope.Valid() {
			return fmt.Errorf("set_var: unknown scope %q", act.Scope)
		}
		switch act.Op {
		case SetVarSet, SetVarIncrement, SetVarDecrement, SetVarMultiply, SetVarDivide, SetVarGenerate:
		default:
			return fmt.Errorf("set_var: unknown operation %q", act.Op)
		}
	case *ActorPostAction:
		if act.Character == "" {
			return fmt.Errorf("actor_post has no character")
		}
	case *NarratorPostAction, *NewSceneAction, *GameOverAction, *UnknownAction:
	default:
		return fmt.Errorf("unrecognized action %T", a)
	}
	return nil
}
