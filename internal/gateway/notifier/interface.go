package notifier

import (
	"context"
	"errors"
)

// Notifier delivers one structured message to a channel.
type Notifier interface {
	Notify(ctx context.Context, msg StructuredMessage) error
}

// Multi fans a message out to every configured channel and joins the errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg StructuredMessage) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every message; used when no channel is configured.
type Nop struct{}

func (Nop) Notify(context.Context, StructuredMessage) error { return nil }
