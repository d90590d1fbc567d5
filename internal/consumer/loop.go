// Package consumer holds the generic blocking-poll job loop, the event
// fan-out dispatcher, and the domain consumers registered on top of them.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"engage/internal/broker"
	"engage/internal/observability"
)

type HandlerFunc func(ctx context.Context, job broker.Job) error

// JobQueue is the slice of the broker a loop needs.
type JobQueue interface {
	DequeueBlocking(ctx context.Context, queue string, timeout time.Duration) (*broker.Job, error)
	DeadLetter(ctx context.Context, queue string, job broker.Job, cause error) error
}

// Loop pulls one job at a time from a queue and dispatches it. One logical
// loop per (queue, handler) pair, running for the life of the process;
// cancellation is checked between polls so shutdown never interrupts an
// executing handler.
type Loop struct {
	Queue   string
	Handler HandlerFunc
	Jobs    JobQueue

	// WaitTimeout bounds each blocking poll; RetryDelay is the backoff after
	// a broker-level error. Zero values take the defaults (10s / 5s).
	WaitTimeout time.Duration
	RetryDelay  time.Duration
}

func (l *Loop) Run(ctx context.Context) error {
	wait := l.WaitTimeout
	if wait <= 0 {
		wait = 10 * time.Second
	}
	retry := l.RetryDelay
	if retry <= 0 {
		retry = 5 * time.Second
	}

	slog.Info("consumer loop starting", "queue", l.Queue)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		job, err := l.Jobs.DequeueBlocking(ctx, l.Queue, wait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("dequeue failed, backing off", "queue", l.Queue, "err", err)
			if err := sleep(ctx, retry); err != nil {
				return err
			}
			continue
		}
		if job == nil {
			continue // poll timed out, nothing to do
		}

		start := time.Now()
		err = l.invoke(ctx, *job)
		if err == nil {
			observability.JobsProcessed.WithLabelValues(l.Queue, "ok").Inc()
			slog.Info("job processed",
				"queue", l.Queue, "job_id", job.ID, "type", job.Type,
				"duration", time.Since(start),
			)
			continue
		}

		observability.JobsProcessed.WithLabelValues(l.Queue, "error").Inc()
		slog.Error("job failed",
			"queue", l.Queue, "job_id", job.ID, "type", job.Type, "err", err,
			"duration", time.Since(start),
		)

		if dlErr := l.Jobs.DeadLetter(ctx, l.Queue, *job, err); dlErr != nil {
			// Broker-level trouble, not a second job failure: back off and
			// resume. The job is lost from the failed list but logged above.
			slog.Error("dead-letter enqueue failed", "queue", l.Queue, "job_id", job.ID, "err", dlErr)
			if err := sleep(ctx, retry); err != nil {
				return err
			}
			continue
		}
		observability.DeadLetters.WithLabelValues(l.Queue).Inc()
	}
}

// invoke shields the loop from handler panics; one bad job must never stop
// processing of subsequent jobs.
func (l *Loop) invoke(ctx context.Context, job broker.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return l.Handler(ctx, job)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
