package rules

import (
	"fmt"
	"strings"

	"kal/internal/model"
)

// Rule guards an ordered list of transforms with a list of conditions that
// must all hold.
type Rule struct {
	// Name is optional and only used for logs and listings.
	Name string
	When []Condition
	Then []Transform
}

// New builds a rule from its conditions and transforms.
func New(when []Condition, then ...Transform) Rule {
	return Rule{When: when, Then: then}
}

// Named returns a copy of r with the given name.
func (r Rule) Named(name string) Rule {
	r.Name = name
	return r
}

// Validate reports configuration mistakes before any event is processed.
func (r Rule) Validate() error {
	if len(r.When) == 0 {
		return r.wrap(ErrNoConditions)
	}
	for _, c := range r.When {
		if err := c.Validate(); err != nil {
			return r.wrap(err)
		}
	}
	for _, t := range r.Then {
		if err := t.Validate(); err != nil {
			return r.wrap(err)
		}
	}
	return nil
}

// Apply runs the rule against ev.
//
// When every condition holds, the transforms run in order on a copy of ev.
// The boolean result is false when a transform removed the event; later
// transforms are skipped in that case. When a condition does not hold, ev
// is returned unchanged.
func (r Rule) Apply(ev model.Event) (model.Event, bool, error) {
	if len(r.When) == 0 {
		return ev, true, r.wrap(ErrNoConditions)
	}
	for _, c := range r.When {
		ok, err := c.Evaluate(ev)
		if err != nil {
			return ev, true, r.wrap(err)
		}
		if !ok {
			return ev, true, nil
		}
	}

	out := ev
	for _, t := range r.Then {
		var (
			kept bool
			err  error
		)
		out, kept, err = t.apply(out)
		if err != nil {
			return ev, true, r.wrap(err)
		}
		if !kept {
			return model.Event{}, false, nil
		}
	}
	return out, true, nil
}

func (r Rule) wrap(err error) error {
	if r.Name != "" {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}
	return fmt.Errorf("rule: %w", err)
}

func (r Rule) String() string {
	conds := make([]string, len(r.When))
	for i, c := range r.When {
		conds[i] = c.String()
	}
	acts := make([]string, len(r.Then))
	for i, t := range r.Then {
		acts[i] = t.String()
	}
	if len(acts) == 0 {
		acts = append(acts, "nothing")
	}
	return fmt.Sprintf("when %s then %s", strings.Join(conds, " and "), strings.Join(acts, ", "))
}
