// Package reconcile keeps a destination calendar in line with a source feed
// without touching events it did not create.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	appLog "kal/internal/log"
	"kal/internal/model"
	"kal/internal/rules"
)

// Source is a read-only calendar feed.
type Source interface {
	Events(ctx context.Context) ([]model.Event, error)
}

// Destination is the managed calendar.
type Destination interface {
	// ListFrom returns the events ending after from, ordered by start.
	ListFrom(ctx context.Context, from time.Time) ([]model.Event, error)
	Delete(ctx context.Context, ids []string) error
	Insert(ctx context.Context, events []model.Event) error
}

// Report summarizes one reconciliation pass.
type Report struct {
	RunID      string    `json:"run_id"`
	Mirror     string    `json:"mirror"`
	DryRun     bool      `json:"dry_run"`
	Separation time.Time `json:"separation"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Stage is the last stage entered; StageDone on success.
	Stage Stage `json:"stage"`

	DestinationFuture int `json:"destination_future"`
	Managed           int `json:"managed"`
	Foreign           int `json:"foreign"`
	Fetched           int `json:"fetched"`
	Future            int `json:"future"`
	RemovedByRules    int `json:"removed_by_rules"`
	Deleted           int `json:"deleted"`
	Inserted          int `json:"inserted"`

	// ToDelete and ToInsert are kept for dry runs and previews.
	ToDelete []model.Event `json:"to_delete,omitempty"`
	ToInsert []model.Event `json:"to_insert,omitempty"`
}

// Reconciler runs passes for one mirror. It holds no state between passes.
type Reconciler struct {
	mirror string
	src    Source
	dst    Destination
	rules  []rules.Rule
	now    func() time.Time
	dryRun bool
}

type Option func(*Reconciler)

// WithClock sets the clock the separation instant is read from.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithDryRun makes passes stop before the first destination mutation.
func WithDryRun(dryRun bool) Option {
	return func(r *Reconciler) { r.dryRun = dryRun }
}

func New(mirror string, src Source, dst Destination, rs []rules.Rule, opts ...Option) *Reconciler {
	r := &Reconciler{
		mirror: mirror,
		src:    src,
		dst:    dst,
		rules:  rs,
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// pass carries the values handed from one stage to the next.
type pass struct {
	report  Report
	dest    []model.Event
	managed []model.Event
	source  []model.Event
}

func (p *pass) log(stage Stage, kv ...any) {
	p.report.Stage = stage
	base := []any{"mirror", p.report.Mirror, "run_id", p.report.RunID, "stage", string(stage)}
	appLog.Info("sync stage", append(base, kv...)...)
}

// Run executes one pass. Any failure aborts the remaining stages and is
// returned as a *StageError; mutations already committed are not undone.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	p := &pass{report: Report{
		RunID:     uuid.NewString(),
		Mirror:    r.mirror,
		DryRun:    r.dryRun,
		StartedAt: time.Now(),
	}}

	err := r.run(ctx, p)
	p.report.FinishedAt = time.Now()
	if err != nil {
		serr := &StageError{Mirror: r.mirror, Stage: p.report.Stage, Err: err}
		appLog.Error("sync failed", err, "mirror", r.mirror, "run_id", p.report.RunID, "stage", string(p.report.Stage))
		return p.report, serr
	}
	return p.report, nil
}

func (r *Reconciler) run(ctx context.Context, p *pass) error {
	// INIT: capture the separation instant and reject bad rule sets.
	sep := r.now()
	p.report.Separation = sep
	p.log(StageInit, "separation", sep, "dry_run", r.dryRun)
	if err := rules.Validate(r.rules); err != nil {
		return err
	}

	p.log(StageFetchDestinationFuture)
	dest, err := r.dst.ListFrom(ctx, sep)
	if err != nil {
		return err
	}
	for _, ev := range dest {
		if ev.EndsAfter(sep) {
			p.dest = append(p.dest, ev)
		}
	}
	p.report.DestinationFuture = len(p.dest)

	p.log(StageIdentifyManaged, "destination_future", len(p.dest))
	for _, ev := range p.dest {
		if !IsManaged(ev) {
			p.report.Foreign++
			continue
		}
		p.report.Managed++
		// Managed events already in progress are neither deleted nor
		// re-inserted.
		if ev.StartsAfter(sep) {
			p.managed = append(p.managed, ev)
		}
	}

	p.log(StageFetchSource, "managed", p.report.Managed, "foreign", p.report.Foreign, "deletable", len(p.managed))
	fetched, err := r.src.Events(ctx)
	if err != nil {
		return err
	}
	p.report.Fetched = len(fetched)

	p.log(StageFilterFuture, "fetched", len(fetched))
	future, err := filterFuture(fetched, sep)
	if err != nil {
		return err
	}
	p.report.Future = len(future)

	p.log(StageApplyRules, "future", len(future), "rules", len(r.rules))
	kept, err := rules.Apply(future, r.rules)
	if err != nil {
		return err
	}
	p.report.RemovedByRules = len(future) - len(kept)

	p.log(StageTagOwnership, "kept", len(kept), "removed", p.report.RemovedByRules)
	p.source = make([]model.Event, len(kept))
	for i, ev := range kept {
		if ev.End.IsZero() {
			return fmt.Errorf("event %q at %s: %w: end", ev.Title, ev.Start.Format(time.RFC3339), ErrMissingTime)
		}
		// IDs belong to the destination; inserted events get fresh ones.
		ev.ID = ""
		p.source[i] = Sign(ev)
	}

	if r.dryRun {
		p.report.ToDelete = p.managed
		p.report.ToInsert = p.source
		p.log(StageDone, "dry_run", true, "would_delete", len(p.managed), "would_insert", len(p.source))
		return nil
	}

	p.log(StageDeleteManaged, "count", len(p.managed))
	if len(p.managed) > 0 {
		ids := make([]string, len(p.managed))
		for i, ev := range p.managed {
			ids[i] = ev.ID
		}
		if err := r.dst.Delete(ctx, ids); err != nil {
			return err
		}
	}
	p.report.Deleted = len(p.managed)

	p.log(StageInsert, "count", len(p.source))
	if len(p.source) > 0 {
		if err := r.dst.Insert(ctx, p.source); err != nil {
			return err
		}
	}
	p.report.Inserted = len(p.source)

	p.log(StageDone, "deleted", p.report.Deleted, "inserted", p.report.Inserted)
	return nil
}

// Preview returns the events a pass would insert, without reading or
// writing the destination.
func (r *Reconciler) Preview(ctx context.Context) ([]model.Event, error) {
	if err := rules.Validate(r.rules); err != nil {
		return nil, &StageError{Mirror: r.mirror, Stage: StageInit, Err: err}
	}
	sep := r.now()
	fetched, err := r.src.Events(ctx)
	if err != nil {
		return nil, &StageError{Mirror: r.mirror, Stage: StageFetchSource, Err: err}
	}
	future, err := filterFuture(fetched, sep)
	if err != nil {
		return nil, &StageError{Mirror: r.mirror, Stage: StageFilterFuture, Err: err}
	}
	out, err := rules.Apply(future, r.rules)
	if err != nil {
		return nil, &StageError{Mirror: r.mirror, Stage: StageApplyRules, Err: err}
	}
	return out, nil
}

// filterFuture keeps events starting strictly after sep. An event without a
// start time is a data error.
func filterFuture(events []model.Event, sep time.Time) ([]model.Event, error) {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		d, err := ev.CompareStart(sep)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", ev.Title, err)
		}
		if d > 0 {
			out = append(out, ev)
		}
	}
	return out, nil
}
