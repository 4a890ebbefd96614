package rules

import (
	"fmt"
	"strings"

	"kal/internal/model"
)

// Operator selects the predicate a Condition applies.
type Operator string

const (
	OpAlways     Operator = "always"
	OpContains   Operator = "contains"
	OpEquals     Operator = "equals"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpOr         Operator = "or"
)

// Condition is a predicate over an Event.
//
// String operators (contains, equals, starts_with, ends_with) read Field and
// compare it with Operand. OpOr holds its operands in Any. The zero
// Condition is unconfigured: evaluating it fails with ErrUnconfigured.
type Condition struct {
	Op            Operator
	Field         model.Field
	Operand       string
	CaseSensitive bool
	Any           []Condition
}

// Always returns a condition that holds for every event.
func Always() Condition {
	return Condition{Op: OpAlways}
}

// Contains holds when field contains substr. With caseSensitive false both
// sides are lowercased before comparison.
func Contains(field model.Field, substr string, caseSensitive bool) (Condition, error) {
	c, err := stringCondition(OpContains, field, substr)
	if err != nil {
		return Condition{}, err
	}
	c.CaseSensitive = caseSensitive
	return c, nil
}

// Equals holds when field is exactly value.
func Equals(field model.Field, value string) (Condition, error) {
	return stringCondition(OpEquals, field, value)
}

// StartsWith holds when field begins with prefix.
func StartsWith(field model.Field, prefix string) (Condition, error) {
	return stringCondition(OpStartsWith, field, prefix)
}

// EndsWith holds when field ends with suffix.
func EndsWith(field model.Field, suffix string) (Condition, error) {
	return stringCondition(OpEndsWith, field, suffix)
}

// Or holds when any of its operands holds. Operands are evaluated in order
// and evaluation stops at the first true one.
func Or(a, b Condition, more ...Condition) Condition {
	operands := make([]Condition, 0, 2+len(more))
	operands = append(operands, a, b)
	operands = append(operands, more...)
	return Condition{Op: OpOr, Any: operands}
}

func stringCondition(op Operator, field model.Field, operand string) (Condition, error) {
	if !field.Valid() {
		return Condition{}, fmt.Errorf("%s: %w: %s", op, model.ErrUnknownField, field)
	}
	if !field.IsText() {
		return Condition{}, fmt.Errorf("%s can only be used on a string field: %w: %s is %s",
			op, model.ErrFieldType, field, field.Kind())
	}
	return Condition{Op: op, Field: field, Operand: operand, CaseSensitive: true}, nil
}

// Configured reports whether a predicate is attached.
func (c Condition) Configured() bool {
	return c.Op != ""
}

// Evaluate tests the condition against ev. An absent (empty) field never
// matches a string operator.
func (c Condition) Evaluate(ev model.Event) (bool, error) {
	switch c.Op {
	case "":
		return false, ErrUnconfigured
	case OpAlways:
		return true, nil
	case OpOr:
		if len(c.Any) == 0 {
			return false, fmt.Errorf("%w: or without operands", ErrInvalidRule)
		}
		for _, sub := range c.Any {
			ok, err := sub.Evaluate(ev)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case OpContains, OpEquals, OpStartsWith, OpEndsWith:
		value, err := ev.Text(c.Field)
		if err != nil {
			return false, err
		}
		// An empty field is absent, so even equals "" does not match it.
		if value == "" {
			return false, nil
		}
		return c.match(value), nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidRule, c.Op)
	}
}

func (c Condition) match(value string) bool {
	switch c.Op {
	case OpContains:
		if c.CaseSensitive {
			return strings.Contains(value, c.Operand)
		}
		return strings.Contains(strings.ToLower(value), strings.ToLower(c.Operand))
	case OpEquals:
		return value == c.Operand
	case OpStartsWith:
		return strings.HasPrefix(value, c.Operand)
	case OpEndsWith:
		return strings.HasSuffix(value, c.Operand)
	}
	return false
}

// Validate checks the condition tree without evaluating it.
func (c Condition) Validate() error {
	switch c.Op {
	case "":
		return ErrUnconfigured
	case OpAlways:
		return nil
	case OpOr:
		if len(c.Any) < 2 {
			return fmt.Errorf("%w: or needs at least two conditions", ErrInvalidRule)
		}
		for _, sub := range c.Any {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
		return nil
	case OpContains, OpEquals, OpStartsWith, OpEndsWith:
		_, err := stringCondition(c.Op, c.Field, c.Operand)
		return err
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidRule, c.Op)
	}
}

func (c Condition) String() string {
	switch c.Op {
	case "":
		return "<unconfigured>"
	case OpAlways:
		return "always"
	case OpOr:
		parts := make([]string, len(c.Any))
		for i, sub := range c.Any {
			parts[i] = sub.String()
		}
		return "(" + strings.Join(parts, " or ") + ")"
	case OpContains:
		s := fmt.Sprintf("%s contains %q", c.Field, c.Operand)
		if !c.CaseSensitive {
			s += " (ignoring case)"
		}
		return s
	default:
		return fmt.Sprintf("%s %s %q", c.Field, strings.ReplaceAll(string(c.Op), "_", " "), c.Operand)
	}
}
