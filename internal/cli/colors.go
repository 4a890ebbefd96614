package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kal/internal/model"
)

func newColorsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "colors",
		Short: "List the event colors usable in rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tID\tHEX")
			for _, c := range model.Colors() {
				fmt.Fprintf(tw, "%s\t%s\t#%s\n", c, c.ID(), c.Hex())
			}
			return tw.Flush()
		},
	}
}
