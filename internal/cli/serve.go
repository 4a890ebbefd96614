package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appLog "kal/internal/log"
	"kal/internal/scheduler"
	"kal/internal/web"
)

func newServeCommand(opts *RootOptions) *cobra.Command {
	var (
		listen      string
		syncOnStart bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Sync every mirror on the refresh schedule and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			// --listen overrides the config file if provided.
			if listen != "" {
				cfg.Listen = listen
			}

			a, err := opts.app()
			if err != nil {
				return err
			}
			defer a.Close()

			loc, err := time.LoadLocation(cfg.Timezone)
			if err != nil {
				return err
			}
			syncAll := func(ctx context.Context) error {
				_, err := a.SyncAll(ctx, false)
				return err
			}
			sched, err := scheduler.New(cfg.RefreshCron, loc, syncAll)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			appLog.Info("kal serving", "listen", cfg.Listen, "refresh", cfg.RefreshCron, "mirrors", len(cfg.Mirrors))

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return web.NewServer(cfg, a).Run(ctx)
			})
			if syncOnStart {
				g.Go(func() error {
					// Failures are logged and kept in each mirror's status.
					_ = syncAll(ctx)
					return nil
				})
			}
			sched.Start()

			err = g.Wait()

			stopCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
			defer stop()
			if serr := sched.Stop(stopCtx); serr != nil {
				appLog.Warn("scheduler did not stop in time", "err", serr)
			}
			appLog.Info("kal exiting")
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&syncOnStart, "sync-on-start", false, "sync every mirror once before the first scheduled run")
	return cmd
}
