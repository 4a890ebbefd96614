package rules

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"kal/internal/model"
)

// conditionYAML is the serialized form of a Condition. Exactly one operator
// key must be present.
type conditionYAML struct {
	Field         string      `yaml:"field,omitempty"`
	Contains      *string     `yaml:"contains,omitempty"`
	CaseSensitive *bool       `yaml:"case_sensitive,omitempty"`
	Equals        *string     `yaml:"equals,omitempty"`
	StartsWith    *string     `yaml:"starts_with,omitempty"`
	EndsWith      *string     `yaml:"ends_with,omitempty"`
	Always        bool        `yaml:"always,omitempty"`
	Or            []Condition `yaml:"or,omitempty"`
}

type fieldValueYAML struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

// transformYAML is the serialized form of a Transform.
type transformYAML struct {
	Color  *model.Color    `yaml:"color,omitempty"`
	Prefix *fieldValueYAML `yaml:"prefix,omitempty"`
	Append *fieldValueYAML `yaml:"append,omitempty"`
	Set    *fieldValueYAML `yaml:"set,omitempty"`
	Remove bool            `yaml:"remove,omitempty"`
}

type ruleYAML struct {
	Name string      `yaml:"name,omitempty"`
	When []Condition `yaml:"when"`
	Then []Transform `yaml:"then"`
}

var (
	conditionKeys = []string{"field", "contains", "case_sensitive", "equals", "starts_with", "ends_with", "always", "or"}
	transformKeys = []string{"color", "prefix", "append", "set", "remove"}
	ruleKeys      = []string{"name", "when", "then"}
)

// checkKeys rejects mapping keys outside allowed so that typos surface at load time.
func checkKeys(node *yaml.Node, what string, allowed []string) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: line %d: %s must be a mapping", ErrInvalidRule, node.Line, what)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := node.Content[i]
		if !slices.Contains(allowed, k.Value) {
			return fmt.Errorf("%w: line %d: unknown %s key %q", ErrInvalidRule, k.Line, what, k.Value)
		}
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKeys(node, "condition", conditionKeys); err != nil {
		return err
	}
	var raw conditionYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	built, err := raw.build()
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*c = built
	return nil
}

func (raw conditionYAML) build() (Condition, error) {
	type candidate struct {
		op      Operator
		operand *string
	}
	var chosen []Operator
	var str candidate
	for _, cand := range []candidate{
		{OpContains, raw.Contains},
		{OpEquals, raw.Equals},
		{OpStartsWith, raw.StartsWith},
		{OpEndsWith, raw.EndsWith},
	} {
		if cand.operand != nil {
			chosen = append(chosen, cand.op)
			str = cand
		}
	}
	if raw.Always {
		chosen = append(chosen, OpAlways)
	}
	if raw.Or != nil {
		chosen = append(chosen, OpOr)
	}

	switch len(chosen) {
	case 0:
		return Condition{}, fmt.Errorf("%w: condition needs one of contains, equals, starts_with, ends_with, always, or", ErrInvalidRule)
	case 1:
	default:
		return Condition{}, fmt.Errorf("%w: condition has several operators %v", ErrInvalidRule, chosen)
	}
	if raw.CaseSensitive != nil && chosen[0] != OpContains {
		return Condition{}, fmt.Errorf("%w: case_sensitive only applies to contains", ErrInvalidRule)
	}

	switch op := chosen[0]; op {
	case OpAlways:
		if raw.Field != "" {
			return Condition{}, fmt.Errorf("%w: always takes no field", ErrInvalidRule)
		}
		return Always(), nil
	case OpOr:
		if raw.Field != "" {
			return Condition{}, fmt.Errorf("%w: or takes no field", ErrInvalidRule)
		}
		if len(raw.Or) < 2 {
			return Condition{}, fmt.Errorf("%w: or needs at least two conditions", ErrInvalidRule)
		}
		return Or(raw.Or[0], raw.Or[1], raw.Or[2:]...), nil
	default:
		if raw.Field == "" {
			return Condition{}, fmt.Errorf("%w: %s needs a field", ErrInvalidRule, op)
		}
		field, err := model.ParseField(raw.Field)
		if err != nil {
			return Condition{}, err
		}
		if op == OpContains {
			caseSensitive := true
			if raw.CaseSensitive != nil {
				caseSensitive = *raw.CaseSensitive
			}
			return Contains(field, *str.operand, caseSensitive)
		}
		return stringCondition(op, field, *str.operand)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (c Condition) MarshalYAML() (interface{}, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var raw conditionYAML
	switch c.Op {
	case OpAlways:
		raw.Always = true
		return raw, nil
	case OpOr:
		raw.Or = c.Any
		return raw, nil
	}
	raw.Field = c.Field.String()
	operand := c.Operand
	switch c.Op {
	case OpContains:
		raw.Contains = &operand
		if !c.CaseSensitive {
			f := false
			raw.CaseSensitive = &f
		}
	case OpEquals:
		raw.Equals = &operand
	case OpStartsWith:
		raw.StartsWith = &operand
	case OpEndsWith:
		raw.EndsWith = &operand
	}
	return raw, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Transform) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKeys(node, "transform", transformKeys); err != nil {
		return err
	}
	var raw transformYAML
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("%w: line %d: %v", ErrInvalidRule, node.Line, err)
	}
	built, err := raw.build()
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*t = built
	return nil
}

func (raw transformYAML) build() (Transform, error) {
	var out []Transform
	var errs []error

	if raw.Color != nil {
		if !raw.Color.Valid() {
			errs = append(errs, fmt.Errorf("%w: color must name a palette color", ErrInvalidRule))
		}
		out = append(out, SetColor(*raw.Color))
	}
	for _, fv := range []struct {
		act Action
		val *fieldValueYAML
	}{{ActPrefix, raw.Prefix}, {ActAppend, raw.Append}, {ActSet, raw.Set}} {
		if fv.val == nil {
			continue
		}
		field, err := model.ParseField(fv.val.Field)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		t, err := textTransform(fv.act, field, fv.val.Value)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, t)
	}
	if raw.Remove {
		out = append(out, Remove())
	}

	if len(errs) > 0 {
		return Transform{}, errs[0]
	}
	switch len(out) {
	case 0:
		return Transform{}, fmt.Errorf("%w: transform needs one of color, prefix, append, set, remove", ErrInvalidRule)
	case 1:
		return out[0], nil
	default:
		return Transform{}, fmt.Errorf("%w: transform has several actions", ErrInvalidRule)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (t Transform) MarshalYAML() (interface{}, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	var raw transformYAML
	fv := &fieldValueYAML{Field: t.Field.String(), Value: t.Value}
	switch t.Action {
	case ActSetColor:
		c := t.Color
		raw.Color = &c
	case ActPrefix:
		raw.Prefix = fv
	case ActAppend:
		raw.Append = fv
	case ActSet:
		raw.Set = fv
	case ActRemove:
		raw.Remove = true
	}
	return raw, nil
}

// UnmarshalYAML implements yaml.Unmarshaler. The decoded rule is validated.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKeys(node, "rule", ruleKeys); err != nil {
		return err
	}
	var raw ruleYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	rule := Rule{Name: raw.Name, When: raw.When, Then: raw.Then}
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*r = rule
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (r Rule) MarshalYAML() (interface{}, error) {
	return ruleYAML{Name: r.Name, When: r.When, Then: r.Then}, nil
}
