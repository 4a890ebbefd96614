package rules

import (
	"fmt"
	"strings"
)

// Describe renders a rule set as numbered, human-readable lines.
func Describe(rules []Rule) string {
	var b strings.Builder
	for i, r := range rules {
		name := r.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&b, "%2d. [%s] %s\n", i+1, name, r)
	}
	return b.String()
}
