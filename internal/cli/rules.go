package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"kal/internal/app"
	"kal/internal/config"
	"kal/internal/rules"
)

func newRulesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules [mirror]",
		Short: "Print the rules of a mirror, or of every mirror",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mirrors := opts.cfg.Mirrors
			if len(args) == 1 {
				m, ok := opts.cfg.Mirror(args[0])
				if !ok {
					return fmt.Errorf("%w: %q", app.ErrUnknownMirror, args[0])
				}
				mirrors = []config.Mirror{m}
			}

			if opts.jsonOutput() {
				out := make(map[string][]string, len(mirrors))
				for _, m := range mirrors {
					lines := make([]string, 0, len(m.Rules))
					for _, r := range m.Rules {
						lines = append(lines, r.String())
					}
					out[m.Name] = lines
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			for i, m := range mirrors {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "%s (%d rules)\n", m.Name, len(m.Rules))
				fmt.Fprint(w, rules.Describe(m.Rules))
			}
			return nil
		},
	}
}
