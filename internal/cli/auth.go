package cli

import (
	"github.com/spf13/cobra"
)

func newAuthCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auth <mirror>",
		Short: "Authorize kal to write to a mirror's calendar",
		Long: `Open the Google consent page for a mirror and store the resulting
token. The consent URL is printed; the browser is redirected back to a
short-lived listener on 127.0.0.1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.app()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if err := a.Authorize(ctx, args[0], cmd.OutOrStdout()); err != nil {
				return err
			}
			cmd.Printf("mirror %q authorized\n", args[0])
			return nil
		},
	}
}
