// Package eventbus provides an in-process pub/sub event bus for domain events.
// Handlers publish events after the API accepted a mutation; subscribers
// process them asynchronously in a single consumer goroutine.
package eventbus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/matthewbaird/casedesk/internal/event"
)

// Handler processes a domain event.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.DomainEvent) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.DomainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return f(ctx, evt)
}

// Bus is a simple in-process event bus. Events are published to a buffered
// channel and dispatched to all subscribers in order by Run.
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedHandler
	events      chan event.DomainEvent
	logger      *zap.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// New creates a new Bus with the given channel buffer size.
func New(bufSize int, logger *zap.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		events: make(chan event.DomainEvent, bufSize),
		logger: logger,
	}
}

// Subscribe registers a named handler.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish sends an event to the bus. Non-blocking: if the buffer is full
// the event is dropped and a warning is logged.
func (b *Bus) Publish(_ context.Context, evt event.DomainEvent) {
	select {
	case b.events <- evt:
	default:
		b.logger.Warn("eventbus buffer full, dropping event",
			zap.String("event_type", evt.EventType),
			zap.String("event_id", evt.ID))
	}
}

// Run processes events until ctx is cancelled, then drains what is left in
// the buffer and returns.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-b.events:
			b.dispatch(ctx, evt)
		case <-ctx.Done():
			drainCtx := context.WithoutCancel(ctx)
			for {
				select {
				case evt := <-b.events:
					b.dispatch(drainCtx, evt)
				default:
					return nil
				}
			}
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := b.call(ctx, s, evt); err != nil {
			b.logger.Error("eventbus handler error",
				zap.String("subscriber", s.name),
				zap.String("event_type", evt.EventType),
				zap.Error(err))
		}
	}
}

func (b *Bus) call(ctx context.Context, s namedHandler, evt event.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler.HandleEvent(ctx, evt)
}
