package consumer

import (
	"context"
	"log/slog"

	"engage/internal/broker"
)

type EventHandler func(ctx context.Context, ev broker.Event)

// EventSource is the slice of the broker the dispatcher needs.
type EventSource interface {
	Subscribe(ctx context.Context, channels ...string) (<-chan broker.Delivery, func() error, error)
}

// Dispatcher fans published events out to every handler registered for the
// matching channel. Delivery is best-effort: nothing is persisted, and a
// subscriber registered after publication sees nothing.
type Dispatcher struct {
	Source   EventSource
	handlers map[string][]EventHandler
	channels []string
}

func NewDispatcher(source EventSource) *Dispatcher {
	return &Dispatcher{
		Source:   source,
		handlers: make(map[string][]EventHandler),
	}
}

// On registers a handler for a channel. Register everything before Run;
// registration is not safe concurrently with dispatch.
func (d *Dispatcher) On(channel string, h EventHandler) {
	if _, ok := d.handlers[channel]; !ok {
		d.channels = append(d.channels, channel)
	}
	d.handlers[channel] = append(d.handlers[channel], h)
}

func (d *Dispatcher) Run(ctx context.Context) error {
	if len(d.channels) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	deliveries, closeSub, err := d.Source.Subscribe(ctx, d.channels...)
	if err != nil {
		return err
	}
	defer func() { _ = closeSub() }()

	slog.Info("event dispatcher starting", "channels", d.channels)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case del, ok := <-deliveries:
			if !ok {
				return ctx.Err()
			}
			for _, h := range d.handlers[del.Channel] {
				d.dispatch(ctx, del.Channel, h, del.Event)
			}
		}
	}
}

// dispatch isolates handlers from each other: a panicking handler is logged
// and the rest still receive the event.
func (d *Dispatcher) dispatch(ctx context.Context, channel string, h EventHandler, ev broker.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked",
				"channel", channel, "event_id", ev.ID, "event_type", ev.Type, "panic", r,
			)
		}
	}()
	h(ctx, ev)
}
