package cli

import (
	"github.com/spf13/cobra"

	"kal/internal/reconcile"
)

func newSyncCommand(opts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync [mirror]",
		Short: "Run one sync pass for a mirror, or for every mirror",
		Long: `Run one sync pass. Without a mirror name every configured mirror is
synced, at most "concurrency" at a time.

With --dry-run the feed is fetched and the rules applied, the events that
would be deleted and inserted are printed, and the calendar is left as is.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.app()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			var (
				reports []reconcile.Report
				syncErr error
			)
			if len(args) == 1 {
				var r reconcile.Report
				r, syncErr = a.Sync(ctx, args[0], dryRun)
				if r.Mirror != "" {
					reports = []reconcile.Report{r}
				}
			} else {
				reports, syncErr = a.SyncAll(ctx, dryRun)
			}

			// Mirrors that did sync are reported even when another failed.
			w := cmd.OutOrStdout()
			if opts.jsonOutput() {
				if err := writeJSON(w, reports); err != nil {
					return err
				}
				return syncErr
			}
			if len(reports) == 0 && syncErr == nil {
				cmd.Println("no mirrors configured")
				return nil
			}
			for _, r := range reports {
				if r.Stage != reconcile.StageDone {
					continue
				}
				printReport(w, r)
			}
			return syncErr
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "show changes without touching the calendar")
	return cmd
}
