package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"engage/internal/broker"
)

type fakeSource struct {
	deliveries chan broker.Delivery
	channels   []string
}

func (s *fakeSource) Subscribe(ctx context.Context, channels ...string) (<-chan broker.Delivery, func() error, error) {
	s.channels = channels
	return s.deliveries, func() error { return nil }, nil
}

func TestDispatcherFansOut(t *testing.T) {
	src := &fakeSource{deliveries: make(chan broker.Delivery, 4)}
	d := NewDispatcher(src)

	var mu sync.Mutex
	got := map[string]int{}
	record := func(key string) EventHandler {
		return func(ctx context.Context, ev broker.Event) {
			mu.Lock()
			got[key]++
			mu.Unlock()
		}
	}
	d.On(EventCustomerCreated, record("created-a"))
	d.On(EventCustomerCreated, record("created-b"))
	d.On(EventCustomerDeleted, record("deleted"))

	src.deliveries <- broker.Delivery{
		Channel: EventCustomerCreated,
		Event:   broker.Event{ID: "evt_1", Type: EventCustomerCreated},
	}
	src.deliveries <- broker.Delivery{
		Channel: EventCustomerDeleted,
		Event:   broker.Event{ID: "evt_2", Type: EventCustomerDeleted},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := d.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline from Run, got %v", err)
	}

	if len(src.channels) != 2 {
		t.Fatalf("expected subscription to 2 channels, got %v", src.channels)
	}
	mu.Lock()
	defer mu.Unlock()
	if got["created-a"] != 1 || got["created-b"] != 1 {
		t.Fatalf("expected both created handlers to fire once, got %v", got)
	}
	if got["deleted"] != 1 {
		t.Fatalf("expected deleted handler to fire once, got %v", got)
	}
}

func TestDispatcherIsolatesPanickingHandler(t *testing.T) {
	src := &fakeSource{deliveries: make(chan broker.Delivery, 1)}
	d := NewDispatcher(src)

	var mu sync.Mutex
	var calls int
	d.On(EventCampaignCompleted, func(ctx context.Context, ev broker.Event) {
		panic("bad subscriber")
	})
	d.On(EventCampaignCompleted, func(ctx context.Context, ev broker.Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	src.deliveries <- broker.Delivery{
		Channel: EventCampaignCompleted,
		Event:   broker.Event{ID: "evt_1", Type: EventCampaignCompleted},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = d.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected second handler to run despite the panic, calls=%d", calls)
	}
}

func TestDispatcherDeliversMalformedEvents(t *testing.T) {
	src := &fakeSource{deliveries: make(chan broker.Delivery, 1)}
	d := NewDispatcher(src)

	var mu sync.Mutex
	var got broker.Event
	d.On(EventCustomerCreated, func(ctx context.Context, ev broker.Event) {
		mu.Lock()
		got = ev
		mu.Unlock()
	})

	raw, _ := json.Marshal(broker.MalformedData{Raw: "not json", Error: "invalid character"})
	src.deliveries <- broker.Delivery{
		Channel: EventCustomerCreated,
		Event:   broker.Event{ID: "evt_x", Type: broker.EventMalformed, Data: raw},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = d.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if got.Type != broker.EventMalformed {
		t.Fatalf("expected the malformed event to reach handlers, got type %q", got.Type)
	}
}

func TestDispatcherNoChannelsWaitsForCancel(t *testing.T) {
	d := NewDispatcher(&fakeSource{deliveries: make(chan broker.Delivery)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
