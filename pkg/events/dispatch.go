package events

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/handshake-client/internal/apperror"
	"github.com/fd1az/handshake-client/pkg/chain"
)

// On appends h to the handlers of name. Handlers run in registration order
// on the session's dispatch loop and should return quickly.
func (s *Session) On(name string, h Handler) {
	if h == nil {
		return
	}
	s.handlersMu.Lock()
	s.handlers[name] = append(s.handlers[name], h)
	s.handlersMu.Unlock()
}

// OnEntry registers fn for an event whose first argument is a serialized
// chain entry, such as EventChainConnect or EventBlockConnect.
func (s *Session) OnEntry(name string, fn func(ctx context.Context, entry *chain.Entry) error) {
	if fn == nil {
		return
	}
	s.On(name, func(ctx context.Context, ev Event) error {
		entry, err := entryFromArgs(ev.Args)
		if err != nil {
			return err
		}
		return fn(ctx, entry)
	})
}

func (s *Session) handlersFor(name string) []Handler {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	return append([]Handler(nil), s.handlers[name]...)
}

// dispatch is the single consumer of a connection's events.
func (s *Session) dispatch(c *connection) {
	ctx := context.Background()
	for {
		ev, ok := c.queue.pop()
		if !ok {
			return
		}
		s.metrics.queueDepth.Record(ctx, int64(c.queue.len()))
		s.deliver(ctx, ev)
	}
}

func (s *Session) deliver(ctx context.Context, ev Event) {
	s.metrics.received.Add(ctx, 1, metric.WithAttributes(attribute.String("event", ev.Name)))

	handlers := s.handlersFor(ev.Name)
	if len(handlers) == 0 {
		s.log.Debug(ctx, "no handler for event", "event", ev.Name)
		return
	}
	for _, h := range handlers {
		if err := s.invoke(ctx, ev, h); err != nil {
			s.handlerFailed(ctx, ev, err)
		}
	}
}

func (s *Session) invoke(ctx context.Context, ev Event, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperror.New(apperror.CodeEventHandlerFailed,
				apperror.WithContext(fmt.Sprintf("%s: panic: %v", ev.Name, r)))
		}
	}()

	if err := h(ctx, ev); err != nil {
		return apperror.Wrap(err, apperror.CodeEventHandlerFailed, ev.Name)
	}
	return nil
}

func (s *Session) handlerFailed(ctx context.Context, ev Event, err error) {
	s.metrics.handlerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("event", ev.Name)))
	s.log.Error(ctx, "event handler failed", "event", ev.Name, "error", err)

	if s.opts.onError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(ctx, "event error hook panicked", "event", ev.Name, "panic", r)
		}
	}()
	s.opts.onError(ctx, ev, err)
}
