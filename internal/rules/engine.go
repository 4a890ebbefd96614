package rules

import (
	"fmt"

	appLog "kal/internal/log"
	"kal/internal/model"
)

// Apply runs rules over events and returns the surviving, transformed events
// in their original order.
//
// For each event the rules run strictly in order, the output of one rule
// feeding the next. An event removed by a rule is not shown to later rules
// and is left out of the result. The first error aborts the whole run.
func Apply(events []model.Event, rules []Rule) ([]model.Event, error) {
	out := make([]model.Event, 0, len(events))

	for i, ev := range events {
		cur, kept, err := applyAll(ev, rules)
		if err != nil {
			return nil, fmt.Errorf("event %d (%q): %w", i, ev.Title, err)
		}
		if !kept {
			appLog.Debug("event removed by rules", "title", ev.Title, "start", ev.Start)
			continue
		}
		out = append(out, cur)
	}

	return out, nil
}

func applyAll(ev model.Event, rules []Rule) (model.Event, bool, error) {
	cur := ev
	for _, r := range rules {
		next, kept, err := r.Apply(cur)
		if err != nil {
			return model.Event{}, false, err
		}
		if !kept {
			return model.Event{}, false, nil
		}
		cur = next
	}
	return cur, true, nil
}

// Validate checks every rule of a rule set.
func Validate(rules []Rule) error {
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule #%d: %w", i+1, err)
		}
	}
	return nil
}
