// Package eventbus provides an in-process pub/sub bus for cache
// invalidation events. Controllers publish after a successful mutation;
// subscribers (the live stream, the log consumer) process them
// asynchronously in a single consumer goroutine.
package eventbus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/matthewbaird/backoffice/internal/logging"
)

// Handler processes an event. Implementations must be safe for concurrent
// calls from different goroutines.
type Handler interface {
	HandleEvent(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Publisher sends events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Bus is a buffered in-process event bus. Events are dispatched to every
// subscriber in publish order.
type Bus struct {
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers []namedHandler
	closed      bool

	events chan Event
	done   chan struct{}
}

type namedHandler struct {
	name    string
	handler Handler
}

// New creates a Bus with the given channel buffer size.
func New(bufSize int, logger *zap.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	return &Bus{
		logger: logging.OrNop(logger).Named("eventbus"),
		events: make(chan Event, bufSize),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a named handler.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish sends an event to the bus. It never blocks: if the buffer is
// full, or the bus is stopped, the event is dropped with a warning.
func (b *Bus) Publish(_ context.Context, evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.logger.Warn("bus stopped, dropping event", zap.String("event_id", evt.ID))
		return
	}
	select {
	case b.events <- evt:
	default:
		b.logger.Warn("buffer full, dropping event",
			zap.String("event_id", evt.ID),
			zap.String("query_key", evt.QueryKey))
	}
}

// Start runs the consumer goroutine until ctx is cancelled or Stop is
// called. Events still buffered at that point are dispatched first.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		for {
			select {
			case evt, ok := <-b.events:
				if !ok {
					return
				}
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				for {
					select {
					case evt, ok := <-b.events:
						if !ok {
							return
						}
						b.dispatch(ctx, evt)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop closes the bus and waits for the consumer goroutine to finish.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
	b.mu.Unlock()
	<-b.done
}

func (b *Bus) dispatch(ctx context.Context, evt Event) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			b.logger.Warn("handler error",
				zap.String("handler", s.name),
				zap.String("query_key", evt.QueryKey),
				zap.Error(err))
		}
	}
}
