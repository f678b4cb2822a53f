package event

import "context"

// Publisher sends domain events to downstream consumers. Publishing is
// best-effort and never fails the request that produced the event.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// PublisherFunc adapts a plain function to Publisher.
type PublisherFunc func(ctx context.Context, evt DomainEvent)

func (f PublisherFunc) Publish(ctx context.Context, evt DomainEvent) { f(ctx, evt) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, DomainEvent) {})
