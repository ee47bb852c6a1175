package message

import (
	"fmt"
)

// ActionType is the kind of move a player makes when asked to act.
type ActionType int32

const (
	CallAtAction ActionType = iota
	RaiseToAction
	FoldAction
	CheckAction
)

var ActionType_name = map[ActionType]string{
	CallAtAction:  "CallAt",
	RaiseToAction: "RaiseTo",
	FoldAction:    "Fold",
	CheckAction:   "Check",
}

var ActionType_value = map[string]ActionType{
	"CallAt":  CallAtAction,
	"RaiseTo": RaiseToAction,
	"Fold":    FoldAction,
	"Check":   CheckAction,
}

func (t ActionType) String() string {
	if name, ok := ActionType_name[t]; ok {
		return name
	}
	return fmt.Sprintf("ActionType(%d)", int32(t))
}

func (t ActionType) IsValid() bool {
	_, ok := ActionType_name[t]
	return ok
}

// takesAmount reports whether Extra carries a chip amount for this action.
func (t ActionType) takesAmount() bool {
	return t == CallAtAction || t == RaiseToAction
}

func ParseActionType(name string) (ActionType, error) {
	t, ok := ActionType_value[name]
	if !ok {
		return FoldAction, ValidationError{Field: "type", Reason: fmt.Sprintf("unknown action type [%s]", name)}
	}
	return t, nil
}

// ClientAction is a player's move. Extra is the chip amount for CallAt and RaiseTo
// and is always 0 for Fold and Check.
type ClientAction struct {
	Type  ActionType
	Extra int
}

// NewClientAction validates the type/extra combination.
func NewClientAction(t ActionType, extra int) (ClientAction, error) {
	a := ClientAction{Type: t, Extra: extra}
	if err := a.Validate(); err != nil {
		return ClientAction{}, err
	}
	return a, nil
}

func Fold() ClientAction {
	return ClientAction{Type: FoldAction}
}

func Check() ClientAction {
	return ClientAction{Type: CheckAction}
}

func CallAt(amount int) (ClientAction, error) {
	return NewClientAction(CallAtAction, amount)
}

func RaiseTo(amount int) (ClientAction, error) {
	return NewClientAction(RaiseToAction, amount)
}

// Validate is run on construction and again on every decoded action.
func (a ClientAction) Validate() error {
	if !a.Type.IsValid() {
		return ValidationError{Field: "type", Reason: fmt.Sprintf("unknown action type %d", int32(a.Type))}
	}
	if a.Type.takesAmount() {
		if a.Extra < 0 {
			return ValidationError{Field: "extra", Reason: fmt.Sprintf("%s amount must not be negative, got %d", a.Type, a.Extra)}
		}
		return nil
	}
	if a.Extra != 0 {
		return ValidationError{Field: "extra", Reason: fmt.Sprintf("%s takes no amount, got %d", a.Type, a.Extra)}
	}
	return nil
}

func (a ClientAction) String() string {
	switch a.Type {
	case FoldAction, CheckAction:
		return a.Type.String()
	default:
		return fmt.Sprintf("%s(%d)", a.Type, a.Extra)
	}
}
