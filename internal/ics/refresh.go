package ics

import (
	"context"
	"errors"
	"fmt"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

// EventSink receives the imported events of one subscription, replacing
// whatever that subscription contributed before.
type EventSink interface {
	ReplaceSource(source string, events []model.Event) (added, skipped int, err error)
}

// Refresher pulls every subscription into an EventSink.
type Refresher struct {
	fetcher *Fetcher
	sink    EventSink
	subs    []Subscription
}

// NewRefresher wires a fetcher and sink for the given subscriptions.
func NewRefresher(fetcher *Fetcher, sink EventSink, subs []Subscription) *Refresher {
	return &Refresher{fetcher: fetcher, sink: sink, subs: subs}
}

// Refresh fetches and imports each subscription in order. A failing
// subscription keeps its previous events; all failures are joined into
// the returned error.
func (r *Refresher) Refresh(ctx context.Context) error {
	var errs []error

	for _, sub := range r.subs {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := r.fetcher.Fetch(ctx, sub)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sub.ID, err))
			continue
		}

		events, err := Import(sub.ID, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sub.ID, err))
			continue
		}

		added, skipped, err := r.sink.ReplaceSource(sub.ID, events)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sub.ID, err))
			continue
		}
		appLog.Info("subscription refreshed", "id", sub.ID, "added", added, "skipped", skipped, "from_cache", res.FromCache)
	}

	return errors.Join(errs...)
}
