package rules

import (
	"fmt"

	"kal/internal/model"
)

// Action selects what a Transform does.
type Action string

const (
	ActSetColor Action = "color"
	ActPrefix   Action = "prefix"
	ActAppend   Action = "append"
	ActSet      Action = "set"
	ActRemove   Action = "remove"
)

// Transform is one step of a Rule's action list.
type Transform struct {
	Action Action
	Field  model.Field
	Value  string
	Color  model.Color
}

// SetColor sets the event color.
func SetColor(c model.Color) Transform {
	return Transform{Action: ActSetColor, Color: c}
}

// Prefix prepends value to a string field.
func Prefix(field model.Field, value string) (Transform, error) {
	return textTransform(ActPrefix, field, value)
}

// Append appends value to a string field.
func Append(field model.Field, value string) (Transform, error) {
	return textTransform(ActAppend, field, value)
}

// Set replaces a string field with value.
func Set(field model.Field, value string) (Transform, error) {
	return textTransform(ActSet, field, value)
}

// Remove drops the event.
func Remove() Transform {
	return Transform{Action: ActRemove}
}

func textTransform(act Action, field model.Field, value string) (Transform, error) {
	if !field.Valid() {
		return Transform{}, fmt.Errorf("%s: %w: %s", act, model.ErrUnknownField, field)
	}
	if !field.IsText() {
		return Transform{}, fmt.Errorf("%s can only be used on a string field: %w: %s is %s",
			act, model.ErrFieldType, field, field.Kind())
	}
	return Transform{Action: act, Field: field, Value: value}, nil
}

// Validate checks that the transform is well formed.
func (t Transform) Validate() error {
	switch t.Action {
	case ActSetColor:
		if !t.Color.Valid() {
			return fmt.Errorf("%w: color transform without a color", ErrInvalidRule)
		}
		return nil
	case ActRemove:
		return nil
	case ActPrefix, ActAppend, ActSet:
		_, err := textTransform(t.Action, t.Field, t.Value)
		return err
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRule, t.Action)
	}
}

// apply runs the transform. The boolean result is false when the event was removed.
func (t Transform) apply(ev model.Event) (model.Event, bool, error) {
	switch t.Action {
	case ActRemove:
		return model.Event{}, false, nil
	case ActSetColor:
		return ev.WithColor(t.Color), true, nil
	case ActSet:
		out, err := ev.WithText(t.Field, t.Value)
		return out, true, err
	case ActPrefix, ActAppend:
		cur, err := ev.Text(t.Field)
		if err != nil {
			return ev, true, err
		}
		next := t.Value + cur
		if t.Action == ActAppend {
			next = cur + t.Value
		}
		out, err := ev.WithText(t.Field, next)
		return out, true, err
	default:
		return ev, true, fmt.Errorf("%w: unknown action %q", ErrInvalidRule, t.Action)
	}
}

func (t Transform) String() string {
	switch t.Action {
	case ActSetColor:
		return fmt.Sprintf("set color %s (#%s)", t.Color, t.Color.Hex())
	case ActPrefix:
		return fmt.Sprintf("prefix %s with %q", t.Field, t.Value)
	case ActAppend:
		return fmt.Sprintf("append %q to %s", t.Value, t.Field)
	case ActSet:
		return fmt.Sprintf("set %s to %q", t.Field, t.Value)
	case ActRemove:
		return "remove event"
	default:
		return "<invalid transform>"
	}
}
