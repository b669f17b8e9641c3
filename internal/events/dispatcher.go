package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handler consumes one dispatched event.
type Handler func(ctx context.Context, event Event)

// Dispatcher fans events out to registered handlers synchronously, in
// registration order. A panicking handler is recovered and logged so one bad
// subscriber cannot break webhook processing. Safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *zap.Logger
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for an event name.
func (d *Dispatcher) Subscribe(name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = append(d.handlers[name], handler)
}

// Dispatch delivers the event to every handler subscribed to its name.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	d.mu.RLock()
	handlers := d.handlers[event.EventName()]
	d.mu.RUnlock()

	for _, handler := range handlers {
		d.safeCall(ctx, event, handler)
	}
}

func (d *Dispatcher) safeCall(ctx context.Context, event Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("event handler panicked",
				zap.String("event", event.EventName()),
				zap.Any("panic", r))
		}
	}()
	handler(ctx, event)
}
