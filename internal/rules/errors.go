package rules

import "errors"

var (
	// ErrUnconfigured is returned when evaluating a Condition that has no predicate.
	ErrUnconfigured = errors.New("condition has no predicate")

	// ErrNoConditions is returned when applying a Rule with an empty condition list.
	ErrNoConditions = errors.New("rule has no conditions")

	// ErrInvalidRule reports a malformed rule or condition definition.
	ErrInvalidRule = errors.New("invalid rule")
)
