// Package condition evaluates a rule's gating conditions against current
// session state. Evaluation never mutates state and never raises out of
// the evaluator: coercion failures degrade to string comparison or false.
package condition

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pmaring/ruletick/pkg/rules"
	"github.com/pmaring/ruletick/pkg/session"
)

// Evaluate checks a rule's gating conditions for the given bound character
// (empty for global instances).
//
// Rows fold left-to-right: each row's result combines with the accumulated
// result using that row's own logic operator. When the rule's overall
// condition operator is AND, a false row short-circuits the rest.
func Evaluate(ctx context.Context, r *rules.Rule, s *session.Session, character string, log *slog.Logger) bool {
	if r.ConditionType == rules.ConditionAlways {
		return true
	}
	if len(r.Conditions) == 0 {
		return false
	}

	// Overall operator defaults to AND, which permits short-circuiting:
	// a false row in an AND chain can never become true again.
	globalAnd := r.ConditionOperator == "" || r.ConditionOperator == rules.LogicAnd

	var acc bool
	for i, row := range r.Conditions {
		v := evaluateRow(ctx, row, s, character, log)

		if i == 0 {
			acc = v
		} else if row.Logic == rules.LogicOr {
			acc = acc || v
		} else {
			acc = acc && v
		}

		if globalAnd && !v {
			return false
		}
	}
	return acc
}

func evaluateRow(ctx context.Context, row rules.Condition, s *session.Session, character string, log *slog.Logger) bool {
	switch row.Type {
	case rules.ConditionGameTime:
		return evaluateGameTime(row, s)
	case rules.ConditionVar:
		return evaluateVariable(ctx, row, s, character, log)
	default:
		if log != nil {
			log.Warn("Unknown condition row type", "type", string(row.Type))
		}
		return false
	}
}

// evaluateGameTime compares one cyclical clock component. The comparison is
// against the component only: "hour before 6" means the hour of day, not
// absolute elapsed time.
func evaluateGameTime(row rules.Condition, s *session.Session) bool {
	if s.Clock == nil {
		return false
	}
	target, err := strconv.Atoi(strings.TrimSpace(row.Value))
	if err != nil {
		return false
	}

	now := s.Clock.Now()
	var current int
	switch row.Name {
	case rules.FieldSecond:
		current = now.Second()
	case rules.FieldMinute:
		current = now.Minute()
	case rules.FieldHour:
		current = now.Hour()
	case rules.FieldDate:
		current = now.Day()
	case rules.FieldMonth:
		current = int(now.Month())
	case rules.FieldYear:
		current = now.Year()
	default:
		return false
	}

	switch row.Operator {
	case rules.OpBefore:
		return current < target
	case rules.OpAfter:
		return current > target
	case rules.OpAt:
		return current == target
	}
	return false
}

func evaluateVariable(ctx context.Context, row rules.Condition, s *session.Session, character string, log *slog.Logger) bool {
	rowCharacter := character
	if row.Character != "" {
		rowCharacter = row.Character
	}

	value, ok, err := s.Vars.Get(ctx, s.ID, row.Scope, rowCharacter, row.Name)
	if err != nil {
		// Unreadable documents read as absent.
		if log != nil {
			log.Warn("Variable read failed during condition evaluation",
				"session_id", s.ID.String(), "variable", row.Name, "error", err)
		}
		ok = false
	}

	// Absent values: != is true, not-exists is true, everything else false.
	if !ok {
		switch row.Operator {
		case rules.OpNeq, rules.OpNotExists:
			return true
		default:
			return false
		}
	}

	switch row.Operator {
	case rules.OpExists:
		return value != ""
	case rules.OpNotExists:
		return value == ""
	case rules.OpContains:
		return strings.Contains(strings.ToLower(value), strings.ToLower(row.Value))
	case rules.OpNotContains:
		return !strings.Contains(strings.ToLower(value), strings.ToLower(row.Value))
	}

	return compare(value, row.Operator, row.Value)
}

// compare applies a relational operator, numerically when both sides parse
// as numbers, otherwise as a case-insensitive string comparison.
func compare(current, op, target string) bool {
	a, errA := strconv.ParseFloat(strings.TrimSpace(current), 64)
	b, errB := strconv.ParseFloat(strings.TrimSpace(target), 64)
	if errA == nil && errB == nil {
		switch op {
		case rules.OpEq:
			return a == b
		case rules.OpNeq:
			return a != b
		case rules.OpGt:
			return a > b
		case rules.OpLt:
			return a < b
		case rules.OpGte:
			return a >= b
		case rules.OpLte:
			return a <= b
		}
		return false
	}

	cmp := strings.Compare(strings.ToLower(current), strings.ToLower(target))
	switch op {
	case rules.OpEq:
		return cmp == 0
	case rules.OpNeq:
		return cmp != 0
	case rules.OpGt:
		return cmp > 0
	case rules.OpLt:
		return cmp < 0
	case rules.OpGte:
		return cmp >= 0
	case rules.OpLte:
		return cmp <= 0
	}
	return false
}
