package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable wraps any failure of the underlying substrate. Consumer
// loops treat it as transient and back off; it is never a job failure.
var ErrUnavailable = errors.New("broker unavailable")

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// Job is the envelope for a unit of asynchronous work on a named queue.
// Keep it small; the payload shape is owned by the queue's consumer.
type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	Status     string          `json:"status"` // pending | failed

	// Set only on the dead-letter copy.
	Error    string     `json:"error,omitempty"`
	FailedAt *time.Time `json:"failedAt,omitempty"`
}

// Event is a fire-and-forget notification on a named channel. It exists only
// for the duration of delivery to currently-registered subscribers.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
	PublishedAt time.Time       `json:"publishedAt"`
}

// EventMalformed is the type of the error-shaped event synthesized when a
// published payload cannot be decoded. Handlers receive it instead of the
// event being dropped silently.
const EventMalformed = "event.malformed"

type MalformedData struct {
	Raw   string `json:"raw"`
	Error string `json:"error"`
}

// Delivery pairs an event with the channel it arrived on.
type Delivery struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
}

type QueueStats struct {
	Pending int64 `json:"pending"`
	Failed  int64 `json:"failed"`
	Total   int64 `json:"total"`
}

type Health struct {
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checkedAt"`
	Error     string    `json:"error,omitempty"`
}

// Err re-materializes the check result as an error for readiness probes.
func (h Health) Err() error {
	if h.Healthy {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnavailable, h.Error)
}

// DeadLetterQueue names the failed-job list paired with a queue.
func DeadLetterQueue(queue string) string {
	return queue + ":failed"
}
