// Package app wires configuration, storage and the calendar collaborators
// into per-mirror reconcilers.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kal/internal/auth"
	"kal/internal/config"
	"kal/internal/gcal"
	"kal/internal/ics"
	appLog "kal/internal/log"
	"kal/internal/model"
	"kal/internal/reconcile"
	"kal/internal/store"
)

var (
	ErrUnknownMirror  = errors.New("unknown mirror")
	ErrSyncInProgress = errors.New("sync already in progress")
)

// SourceFactory builds the feed of a mirror.
type SourceFactory func(m config.Mirror) (reconcile.Source, error)

// DestinationFactory builds the destination calendar of a mirror.
type DestinationFactory func(ctx context.Context, m config.Mirror) (reconcile.Destination, error)

// Status is the in-memory state of a mirror, reset on restart.
type Status struct {
	Mirror      config.Mirror     `json:"mirror"`
	Rules       int               `json:"rules"`
	Running     bool              `json:"running"`
	LastRun     *reconcile.Report `json:"last_run,omitempty"`
	LastError   string            `json:"last_error,omitempty"`
	LastSuccess time.Time         `json:"last_success,omitzero"`
}

// App runs mirrors. It is safe for concurrent use; a mirror never runs
// twice at the same time.
type App struct {
	cfg   *config.Config
	store *store.Store

	newSource      SourceFactory
	newDestination DestinationFactory
	now            func() time.Time

	authOnce sync.Once
	auth     *auth.Authorizer
	authErr  error

	mu     sync.Mutex
	status map[string]*Status
}

type Option func(*App)

func WithSourceFactory(f SourceFactory) Option {
	return func(a *App) { a.newSource = f }
}

func WithDestinationFactory(f DestinationFactory) Option {
	return func(a *App) { a.newDestination = f }
}

// WithClock sets the clock used for separation instants.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithStore uses an already open store instead of opening cfg.DBPath().
func WithStore(s *store.Store) Option {
	return func(a *App) { a.store = s }
}

// New builds an App for cfg. Unless overridden, feeds are fetched over HTTP
// with their conditional-request state kept in the store, and destinations
// are Google calendars authorized with the mirror's stored token.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		now:    time.Now,
		status: make(map[string]*Status, len(cfg.Mirrors)),
	}
	for _, o := range opts {
		o(a)
	}
	if a.store == nil && (a.newSource == nil || a.newDestination == nil) {
		s, err := store.Open(cfg.DBPath())
		if err != nil {
			return nil, err
		}
		a.store = s
	}
	if a.newSource == nil {
		fetcher := ics.NewFetcher(ics.WithCache(a.store.Bucket(store.BucketFeeds)))
		a.newSource = func(m config.Mirror) (reconcile.Source, error) {
			loc, err := time.LoadLocation(cfg.MirrorTimezone(m))
			if err != nil {
				return nil, err
			}
			return ics.NewFeed(m.Source, loc, fetcher), nil
		}
	}
	if a.newDestination == nil {
		a.newDestination = a.googleCalendar
	}
	for _, m := range cfg.Mirrors {
		a.status[m.Name] = &Status{Mirror: m, Rules: len(m.Rules)}
	}
	return a, nil
}

// Close releases the store.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func (a *App) Config() *config.Config {
	return a.cfg
}

// Authorizer loads the OAuth client credentials on first use.
func (a *App) Authorizer() (*auth.Authorizer, error) {
	a.authOnce.Do(func() {
		if a.store == nil {
			a.authErr = errors.New("no token store")
			return
		}
		a.auth, a.authErr = auth.Load(a.cfg.Credentials, a.store.Bucket(store.BucketTokens))
	})
	return a.auth, a.authErr
}

func (a *App) googleCalendar(ctx context.Context, m config.Mirror) (reconcile.Destination, error) {
	authz, err := a.Authorizer()
	if err != nil {
		return nil, err
	}
	client, err := authz.Client(ctx, m.Name)
	if err != nil {
		return nil, err
	}
	return gcal.New(ctx, client, m.CalendarID, a.cfg.MirrorTimezone(m), nil)
}

// Authorize runs the consent flow for the named mirror.
func (a *App) Authorize(ctx context.Context, name string, out io.Writer) error {
	if _, ok := a.cfg.Mirror(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMirror, name)
	}
	authz, err := a.Authorizer()
	if err != nil {
		return err
	}
	return authz.Authorize(ctx, name, out)
}

func (a *App) reconciler(ctx context.Context, m config.Mirror, dryRun, needDestination bool) (*reconcile.Reconciler, error) {
	src, err := a.newSource(m)
	if err != nil {
		return nil, err
	}
	var dst reconcile.Destination
	if needDestination {
		if dst, err = a.newDestination(ctx, m); err != nil {
			return nil, err
		}
	}
	return reconcile.New(m.Name, src, dst, m.Rules, reconcile.WithClock(a.now), reconcile.WithDryRun(dryRun)), nil
}

// Sync runs one pass for the named mirror.
func (a *App) Sync(ctx context.Context, name string, dryRun bool) (reconcile.Report, error) {
	m, ok := a.cfg.Mirror(name)
	if !ok {
		return reconcile.Report{}, fmt.Errorf("%w: %q", ErrUnknownMirror, name)
	}
	if !a.begin(name) {
		return reconcile.Report{}, fmt.Errorf("%w: %q", ErrSyncInProgress, name)
	}

	r, err := a.reconciler(ctx, m, dryRun, true)
	if err != nil {
		err = &reconcile.StageError{Mirror: name, Stage: reconcile.StageInit, Err: err}
		a.finish(name, nil, err)
		return reconcile.Report{}, err
	}
	report, err := r.Run(ctx)
	a.finish(name, &report, err)
	return report, err
}

// SyncAll runs every mirror, at most cfg.Concurrency at a time. A failing
// mirror does not stop the others; all failures are returned joined.
func (a *App) SyncAll(ctx context.Context, dryRun bool) ([]reconcile.Report, error) {
	reports := make([]reconcile.Report, len(a.cfg.Mirrors))
	errs := make([]error, len(a.cfg.Mirrors))

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, m := range a.cfg.Mirrors {
		g.Go(func() error {
			reports[i], errs[i] = a.Sync(ctx, m.Name, dryRun)
			return nil
		})
	}
	g.Wait()

	err := errors.Join(errs...)
	if err == nil {
		appLog.Info("all mirrors synced", "count", len(reports), "dry_run", dryRun)
	}
	return reports, err
}

// Preview returns the transformed upcoming events of the named mirror
// without touching its destination.
func (a *App) Preview(ctx context.Context, name string) ([]model.Event, error) {
	m, ok := a.cfg.Mirror(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMirror, name)
	}
	r, err := a.reconciler(ctx, m, true, false)
	if err != nil {
		return nil, err
	}
	return r.Preview(ctx)
}

// Statuses returns a snapshot of every mirror's status, in config order.
func (a *App) Statuses() []Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Status, 0, len(a.cfg.Mirrors))
	for _, m := range a.cfg.Mirrors {
		out = append(out, *a.status[m.Name])
	}
	return out
}

// Status returns a snapshot of the named mirror's status.
func (a *App) Status(name string) (Status, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.status[name]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

func (a *App) begin(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.status[name]
	if st.Running {
		return false
	}
	st.Running = true
	return true
}

func (a *App) finish(name string, report *reconcile.Report, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.status[name]
	st.Running = false
	st.LastRun = report
	if err != nil {
		st.LastError = err.Error()
		return
	}
	st.LastError = ""
	if report != nil && !report.DryRun {
		st.LastSuccess = report.FinishedAt
	}
}
