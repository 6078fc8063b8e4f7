package rules

import (
	"encoding/json"
	"fmt"

	"github.com/pmaring/ruletick/pkg/vars"
)

// Action type tags as they appear in rule JSON.
const (
	ActionTypeSetVar       = "set_var"
	ActionTypeNarratorPost = "narrator_post"
	ActionTypeActorPost    = "actor_post"
	ActionTypeNewScene     = "new_scene"
	ActionTypeGameOver     = "game_over"
)

// Action is one step of a rule's firing sequence. Concrete types are
// decoded once when the rule is loaded; the runner dispatches on the
// concrete type rather than re-interpreting strings per firing.
type Action interface {
	ActionType() string
}

// SetVarOp is the operation a SetVarAction applies to its target variable.
type SetVarOp string

const (
	SetVarSet       SetVarOp = "set"
	SetVarIncrement SetVarOp = "increment"
	SetVarDecrement SetVarOp = "decrement"
	SetVarMultiply  SetVarOp = "multiply"
	SetVarDivide    SetVarOp = "divide"
	// SetVarGenerate defers to the external text/number generator.
	SetVarGenerate SetVarOp = "generate"
)

// SetVarAction mutates a scoped variable.
type SetVarAction struct {
	Scope     vars.Scope `json:"scope"`
	Character string     `json:"character,omitempty"` // overrides the bound character
	Variable  string     `json:"variable"`
	Op        SetVarOp   `json:"operation"`
	Value     string     `json:"value,omitempty"`
	// Instructions guide the generator when Op is SetVarGenerate.
	Instructions string `json:"instructions,omitempty"`
}

func (*SetVarAction) ActionType() string { return ActionTypeSetVar }

// NarratorPostAction asks the external inference collaborator for a
// narrator post.
type NarratorPostAction struct {
	SystemMessage string `json:"system_message,omitempty"`
}

func (*NarratorPostAction) ActionType() string { return ActionTypeNarratorPost }

// ActorPostAction asks the external inference collaborator for a post from
// one character. A no-op when the character is not in the scene.
type ActorPostAction struct {
	Character     string `json:"character"`
	SystemMessage string `json:"system_message,omitempty"`
}

func (*ActorPostAction) ActionType() string { return ActionTypeActorPost }

// NewSceneAction advances the session's scene counter and triggers the
// scene-change notification.
type NewSceneAction struct{}

func (*NewSceneAction) ActionType() string { return ActionTypeNewScene }

// GameOverAction triggers the external game-over collaborator and halts
// the rest of the firing's action sequence.
type GameOverAction struct {
	Message string `json:"message,omitempty"`
}

func (*GameOverAction) ActionType() string { return ActionTypeGameOver }

// UnknownAction preserves an unrecognized action type through a
// decode/encode round trip. The runner skips it without error.
type UnknownAction struct {
	Type string
	Raw  json.RawMessage
}

func (a *UnknownAction) ActionType() string { return a.Type }

// ActionList decodes a JSON action array into concrete Action values.
type ActionList []Action

// UnmarshalJSON dispatches each element on its "type" field.
func (al *ActionList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	actions := make([]Action, 0, len(raw))
	for i, r := range raw {
		var tag struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(r, &tag); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}

		var action Action
		switch tag.Type {
		case ActionTypeSetVar:
			action = &SetVarAction{}
		case ActionTypeNarratorPost:
			action = &NarratorPostAction{}
		case ActionTypeActorPost:
			action = &ActorPostAction{}
		case ActionTypeNewScene:
			action = &NewSceneAction{}
		case ActionTypeGameOver:
			action = &GameOverAction{}
		default:
			actions = append(actions, &UnknownAction{Type: tag.Type, Raw: r})
			continue
		}

		if err := json.Unmarshal(r, action); err != nil {
			return fmt.Errorf("action %d (%s): %w", i, tag.Type, err)
		}
		actions = append(actions, action)
	}

	*al = actions
	return nil
}

// MarshalJSON re-attaches the "type" tag to each action.
func (al ActionList) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(al))
	for _, a := range al {
		if u, ok := a.(*UnknownAction); ok {
			raw = append(raw, u.Raw)
			continue
		}

		body, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		fields["type"] = json.RawMessage(fmt.Sprintf("%q", a.ActionType()))

		tagged, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		raw = append(raw, tagged)
	}
	return json.Marshal(raw)
}
