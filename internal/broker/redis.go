package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"engage/internal/util"
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

// Broker is the process-wide queue/event substrate over a single shared
// Redis client. Queues are lists (LPUSH/BRPOP), dead letters live on
// `<queue>:failed`, events go over pub/sub.
type Broker struct {
	client *redis.Client
}

// Connect dials Redis and verifies the connection before returning.
func Connect(ctx context.Context, opts Options) (*Broker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable("connect", err)
	}
	return &Broker{client: client}, nil
}

func (b *Broker) Close() error {
	return b.client.Close()
}

// Enqueue appends a job to the tail of the named queue. The envelope (id,
// timestamp, pending status) is generated here; callers own only the payload.
func (b *Broker) Enqueue(ctx context.Context, queue, jobType string, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, err
	}
	job := Job{
		ID:         util.NewJobID(),
		Type:       jobType,
		Payload:    raw,
		EnqueuedAt: util.NowUTC(),
		Status:     "pending",
	}
	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, err
	}
	if err := b.client.LPush(ctx, queue, body).Err(); err != nil {
		return Job{}, unavailable("enqueue "+queue, err)
	}
	return job, nil
}

// DequeueBlocking pops from the head of the queue, waiting up to timeout.
// Returns (nil, nil) when no job arrived in time; callers loop.
func (b *Broker) DequeueBlocking(ctx context.Context, queue string, timeout time.Duration) (*Job, error) {
	res, err := b.client.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, unavailable("dequeue "+queue, err)
	}
	// res is [key, value]
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		// bad payload => skip it rather than poison the loop
		slog.Error("broker dropping malformed job", "queue", queue, "err", err)
		return nil, nil
	}
	return &job, nil
}

// DeadLetter copies the job, annotated with the failure, onto the queue's
// failed list. The original is already gone from the queue.
func (b *Broker) DeadLetter(ctx context.Context, queue string, job Job, cause error) error {
	now := util.NowUTC()
	job.Status = "failed"
	job.Error = cause.Error()
	job.FailedAt = &now

	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := b.client.LPush(ctx, DeadLetterQueue(queue), body).Err(); err != nil {
		return unavailable("dead-letter "+queue, err)
	}
	return nil
}

// Publish delivers an event to all currently-registered subscribers of the
// channel. No queuing, no replay.
func (b *Broker) Publish(ctx context.Context, channel, eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	ev := Event{
		ID:          util.NewEventID(),
		Type:        eventType,
		Data:        raw,
		PublishedAt: util.NowUTC(),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return Event{}, err
	}
	if err := b.client.Publish(ctx, channel, body).Err(); err != nil {
		return Event{}, unavailable("publish "+channel, err)
	}
	return ev, nil
}

// Subscribe registers for future events on the given channels. It returns a
// delivery stream and a closer; the stream is closed on ctx cancellation or
// when the closer is called. Malformed payloads arrive as error-shaped
// events rather than being dropped.
func (b *Broker) Subscribe(ctx context.Context, channels ...string) (<-chan Delivery, func() error, error) {
	ps := b.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, unavailable("subscribe", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- Delivery{Channel: msg.Channel, Event: decodeEvent(msg.Payload)}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, ps.Close, nil
}

func decodeEvent(payload string) Event {
	var ev Event
	err := json.Unmarshal([]byte(payload), &ev)
	if err == nil && ev.Type != "" {
		return ev
	}
	reason := "missing event type"
	if err != nil {
		reason = err.Error()
	}
	raw, _ := json.Marshal(MalformedData{Raw: payload, Error: reason})
	return Event{
		ID:          util.NewEventID(),
		Type:        EventMalformed,
		Data:        raw,
		PublishedAt: util.NowUTC(),
	}
}

// QueueStats is a point-in-time read, not transactional with concurrent
// enqueue/dequeue.
func (b *Broker) QueueStats(ctx context.Context, queue string) (QueueStats, error) {
	pending, err := b.client.LLen(ctx, queue).Result()
	if err != nil {
		return QueueStats{}, unavailable("stats "+queue, err)
	}
	failed, err := b.client.LLen(ctx, DeadLetterQueue(queue)).Result()
	if err != nil {
		return QueueStats{}, unavailable("stats "+queue, err)
	}
	return QueueStats{Pending: pending, Failed: failed, Total: pending + failed}, nil
}

// HealthCheck probes the substrate. It always returns a value, never an error.
func (b *Broker) HealthCheck(ctx context.Context) Health {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	h := Health{CheckedAt: util.NowUTC()}
	if err := b.client.Ping(pingCtx).Err(); err != nil {
		h.Error = err.Error()
		return h
	}
	h.Healthy = true
	return h
}
