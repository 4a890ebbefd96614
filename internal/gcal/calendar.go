// Package gcal is the Google Calendar v3 destination.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	appLog "kal/internal/log"
	"kal/internal/model"
)

const (
	// BatchSize is the per-request item limit of the Calendar API batch endpoint.
	BatchSize = 50

	defaultParallel = 8
)

// Calendar reads and writes one Google calendar.
type Calendar struct {
	svc      *calendar.Service
	id       string
	tz       string
	loc      *time.Location
	parallel int
}

type Option func(*Calendar)

// WithParallelism bounds concurrent requests within one batch.
func WithParallelism(n int) Option {
	return func(c *Calendar) {
		if n > 0 {
			c.parallel = n
		}
	}
}

// New returns the calendar id reached through client. tz is the zone label
// attached to inserted events. Extra client options (such as an endpoint
// override) are passed to the API client.
func New(ctx context.Context, client *http.Client, id, tz string, opts []Option, clientOpts ...option.ClientOption) (*Calendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	svc, err := calendar.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(client)}, clientOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	c := &Calendar{svc: svc, id: id, tz: tz, loc: loc, parallel: defaultParallel}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ListFrom returns every event (recurring events expanded to instances)
// ending after from, ordered by start. All result pages are read.
func (c *Calendar) ListFrom(ctx context.Context, from time.Time) ([]model.Event, error) {
	var out []model.Event
	call := c.svc.Events.List(c.id).
		TimeMin(from.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250)

	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			ev, err := fromAPI(item, c.loc)
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", c.id, err)
	}
	appLog.Debug("destination listed", "calendar", c.id, "count", len(out))
	return out, nil
}

// Delete removes events by id, BatchSize at a time. Events already gone
// count as deleted. Batches run one after the other; a failing batch stops
// the run and earlier batches stay committed.
func (c *Calendar) Delete(ctx context.Context, ids []string) error {
	return c.batched(ctx, len(ids), "delete", func(ctx context.Context, i int) error {
		err := c.svc.Events.Delete(c.id, ids[i]).Context(ctx).Do()
		if isGone(err) {
			appLog.Debug("event already deleted", "calendar", c.id, "id", ids[i])
			return nil
		}
		if err != nil {
			return fmt.Errorf("delete %s: %w", ids[i], err)
		}
		return nil
	})
}

// Insert creates events, BatchSize at a time. Every event is converted
// before the first request so that a data error sends nothing.
func (c *Calendar) Insert(ctx context.Context, events []model.Event) error {
	payloads := make([]*calendar.Event, len(events))
	for i, ev := range events {
		p, err := toAPI(ev, c.tz)
		if err != nil {
			return err
		}
		payloads[i] = p
	}
	return c.batched(ctx, len(payloads), "insert", func(ctx context.Context, i int) error {
		if _, err := c.svc.Events.Insert(c.id, payloads[i]).Context(ctx).Do(); err != nil {
			return fmt.Errorf("insert %q: %w", payloads[i].Summary, err)
		}
		return nil
	})
}

func (c *Calendar) batched(ctx context.Context, n int, op string, fn func(context.Context, int) error) error {
	for lo := 0; lo < n; lo += BatchSize {
		hi := min(lo+BatchSize, n)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.parallel)
		for i := lo; i < hi; i++ {
			g.Go(func() error { return fn(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("%s batch %d-%d of %d: %w", op, lo+1, hi, n, err)
		}
		appLog.Debug("batch done", "calendar", c.id, "op", op, "from", lo+1, "to", hi)
	}
	return nil
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
}
