// Package action executes a fired rule's ordered action list, one action
// at a time with a settle delay between them, dispatching each action to
// its handler.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pmaring/ruletick/pkg/rules"
	"github.com/pmaring/ruletick/pkg/session"
	"github.com/pmaring/ruletick/pkg/vars"
)

// Handlers are the external collaborators a firing dispatches into. The
// inference plumbing behind narrator/actor posts is out of scope here;
// hosts provide it.
type Handlers interface {
	// PostNarrator requests a narrator post, optionally overriding the
	// system message.
	PostNarrator(ctx context.Context, s *session.Session, systemMessage string) error

	// PostActor requests a post from one character.
	PostActor(ctx context.Context, s *session.Session, character, systemMessage string) error

	// GenerateValue produces a value for a set_var generate operation.
	GenerateValue(ctx context.Context, instructions, current, variable string, scope vars.Scope) (string, error)

	// GameOver ends the game for the session.
	GameOver(ctx context.Context, s *session.Session, message string) error
}

// Runner executes rule action sequences.
type Runner struct {
	handlers Handlers
	delay    time.Duration
	log      *slog.Logger

	// onSceneChange is invoked after a new_scene action advances the
	// scene counter. Wired to the timer registry by the host.
	onSceneChange func(ctx context.Context, s *session.Session)
}

// NewRunner creates a runner with the given settle delay between actions.
func NewRunner(handlers Handlers, delay time.Duration, log *slog.Logger) *Runner {
	return &Runner{
		handlers: handlers,
		delay:    delay,
		log:      log,
	}
}

// SetSceneChangeFunc wires the scene-change notification cascade.
func (r *Runner) SetSceneChangeFunc(fn func(ctx context.Context, s *session.Session)) {
	r.onSceneChange = fn
}

// Execute runs the rule's actions in list order for the given bound
// character. Each action after the first waits for the settle delay, so
// asynchronous side effects of the previous action can begin before the
// next action reads state. A failed action is logged and the sequence
// continues; game_over halts the remainder.
func (r *Runner) Execute(ctx context.Context, s *session.Session, rule *rules.Rule, character string) {
	for i, act := range rule.Actions {
		if i > 0 && r.delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.delay):
			}
		}

		halt, err := r.dispatch(ctx, s, act, character)
		if err != nil {
			r.log.Error("Action execution failed",
				"session_id", s.ID.String(),
				"rule_id", rule.ID,
				"action", act.ActionType(),
				"index", i,
				"error", err)
		}
		if halt {
			return
		}
	}
}

// dispatch runs one action. The halt return stops the rest of the sequence.
func (r *Runner) dispatch(ctx context.Context, s *session.Session, act rules.Action, character string) (halt bool, err error) {
	switch a := act.(type) {
	case *rules.SetVarAction:
		return false, r.setVar(ctx, s, a, character)

	case *rules.NarratorPostAction:
		return false, r.handlers.PostNarrator(ctx, s, a.SystemMessage)

	case *rules.ActorPostAction:
		if !s.HasCharacter(a.Character) {
			r.log.Debug("Actor post skipped, character not in scene",
				"session_id", s.ID.String(), "character", a.Character)
			return false, nil
		}
		return false, r.handlers.PostActor(ctx, s, a.Character, a.SystemMessage)

	case *rules.NewSceneAction:
		scene := s.AdvanceScene()
		r.log.Info("Scene advanced", "session_id", s.ID.String(), "scene", scene)
		if r.onSceneChange != nil {
			r.onSceneChange(ctx, s)
		}
		return false, nil

	case *rules.GameOverAction:
		return true, r.handlers.GameOver(ctx, s, a.Message)

	case *rules.UnknownAction:
		r.log.Debug("Skipping unrecognized action", "type", a.Type)
		return false, nil

	default:
		return false, fmt.Errorf("unhandled action type %T", act)
	}
}

func (r *Runner) setVar(ctx context.Context, s *session.Session, a *rules.SetVarAction, character string) error {
	targetCharacter := character
	if a.Character != "" {
		targetCharacter = a.Character
	}

	current, _, err := s.Vars.Get(ctx, s.ID, a.Scope, targetCharacter, a.Variable)
	if err != nil {
		// Unreadable reads as absent; the write below still proceeds.
		r.log.Warn("Variable read failed, treating as empty",
			"session_id", s.ID.String(), "variable", a.Variable, "error", err)
		current = ""
	}

	var next string
	switch a.Op {
	case rules.SetVarSet:
		next = a.Value

	case rules.SetVarGenerate:
		generated, err := r.handlers.GenerateValue(ctx, a.Instructions, current, a.Variable, a.Scope)
		if err != nil {
			return fmt.Errorf("generate value: %w", err)
		}
		next = generated

	case rules.SetVarIncrement, rules.SetVarDecrement, rules.SetVarMultiply, rules.SetVarDivide:
		next = applyArithmetic(current, a.Op, a.Value)
		if next == current && a.Op == rules.SetVarDivide {
			divisor, err := strconv.ParseFloat(strings.TrimSpace(a.Value), 64)
			if err == nil && divisor == 0 {
				// Division by zero leaves the value unchanged.
				return nil
			}
		}

	default:
		return fmt.Errorf("unknown set_var operation %q", a.Op)
	}

	if err := s.Vars.Set(ctx, s.ID, a.Scope, targetCharacter, a.Variable, next); err != nil {
		return fmt.Errorf("set %s: %w", a.Variable, err)
	}
	return nil
}

// applyArithmetic applies an arithmetic operation, falling back to string
// concatenation when either side does not parse as a number.
func applyArithmetic(current string, op rules.SetVarOp, operand string) string {
	a, errA := strconv.ParseFloat(strings.TrimSpace(current), 64)
	b, errB := strconv.ParseFloat(strings.TrimSpace(operand), 64)
	if errA != nil || errB != nil {
		return current + operand
	}

	var result float64
	switch op {
	case rules.SetVarIncrement:
		result = a + b
	case rules.SetVarDecrement:
		result = a - b
	case rules.SetVarMultiply:
		result = a * b
	case rules.SetVarDivide:
		if b == 0 {
			return current
		}
		result = a / b
	default:
		return current
	}

	return strconv.FormatFloat(result, 'f', -1, 64)
}
