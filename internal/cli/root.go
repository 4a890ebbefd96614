// Package cli is the kal command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"kal/internal/app"
	"kal/internal/config"
	appLog "kal/internal/log"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "text" | "json"

	cfg *config.Config
	// newApp is swapped in tests to inject fake collaborators.
	newApp func(cfg *config.Config) (*app.App, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	if opts.newApp == nil {
		opts.newApp = func(cfg *config.Config) (*app.App, error) { return app.New(cfg) }
	}

	cmd := &cobra.Command{
		Use:   "kal",
		Short: "Mirror ICS feeds into Google calendars",
		Long: `kal mirrors the future events of ICS feeds into Google calendars,
rewriting them through per-mirror rules. Events kal did not create are
never touched.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath(), "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newAuthCommand(opts))
	cmd.AddCommand(newPreviewCommand(opts))
	cmd.AddCommand(newRulesCommand(opts))
	cmd.AddCommand(newColorsCommand(opts))

	return cmd
}

// load reads the config and applies its logging settings. --verbose wins
// over log_level.
func (o *RootOptions) load() error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	level, _ := appLog.ParseLevel(cfg.LogLevel)
	if o.Verbose {
		level = appLog.LevelDebug
	}
	format, _ := appLog.ParseFormat(cfg.LogFormat)
	appLog.SetLevel(level)
	appLog.SetFormat(format)

	appLog.Debug("effective config",
		"config_path", o.ConfigPath,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"data_dir", cfg.DataDir,
		"mirrors", len(cfg.Mirrors),
		"concurrency", cfg.Concurrency,
	)
	o.cfg = cfg
	return nil
}

func (o *RootOptions) app() (*app.App, error) {
	return o.newApp(o.cfg)
}

// signalContext is canceled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// Execute runs the command tree and returns the process exit code. Errors
// are reported as a single line on stderr.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "kal: %v\n", err)
		return 1
	}
	return 0
}
