package chat

import (
	"fmt"
	"sort"
)

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register adds h, replacing any handler already bound to its event.
func (d *Dispatcher) Register(hs ...Handler) {
	for _, h := range hs {
		d.handlers[h.Event()] = h
	}
}

func (d *Dispatcher) Dispatch(ctx *Context, evt *Event, sess *Session) error {
	h, ok := d.handlers[evt.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, evt.Name)
	}
	return h.Handle(ctx, evt, sess)
}

func (d *Dispatcher) GetHandler(event string) Handler {
	return d.handlers[event]
}

// Events lists the registered event names, sorted.
func (d *Dispatcher) Events() []string {
	out := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
