package events

import (
	"context"
	"errors"
)

// Fanout publishes to every notifier; one failing never blocks the others.
type Fanout []Notifier

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
