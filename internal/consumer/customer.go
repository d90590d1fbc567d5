package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"engage/internal/broker"
	"engage/internal/domain"
	"engage/internal/store"
	"engage/internal/util"
)

const DefaultImportBatchSize = 100

type CustomerStore interface {
	UserFinder
	CreateCustomer(ctx context.Context, in store.CustomerInsert) error
	GetCustomerByEmail(ctx context.Context, userID, email string) (domain.Customer, bool, error)
	UpdateCustomer(ctx context.Context, in store.CustomerUpdate) (bool, error)
	SoftDeleteCustomer(ctx context.Context, id string, now time.Time) (bool, error)
	BulkInsertCustomers(ctx context.Context, ins []store.CustomerInsert) error
	UpdateCustomerStats(ctx context.Context, in store.CustomerStatsUpdate) (bool, error)
}

// CustomerConsumer handles every job kind on the customer queue. Each handler
// verifies the acting principal, performs its persistence step, and publishes
// a completion or failure event; failures also propagate so the loop
// dead-letters the job.
type CustomerConsumer struct {
	Store  CustomerStore
	Events EventPublisher

	ImportBatchSize int
}

func (c *CustomerConsumer) Handle(ctx context.Context, job broker.Job) error {
	switch job.Type {
	case JobCreateCustomer:
		return handleAs(ctx, c, job, c.create)
	case JobUpdateCustomer:
		return handleAs(ctx, c, job, c.update)
	case JobDeleteCustomer:
		return handleAs(ctx, c, job, c.delete)
	case JobBulkImportCustomers:
		return handleAs(ctx, c, job, c.bulkImport)
	case JobUpdateCustomerStats:
		return handleAs(ctx, c, job, c.updateStats)
	default:
		return fmt.Errorf("unknown customer job type %q", job.Type)
	}
}

// handleAs decodes the payload into the kind's own shape before dispatching.
// A payload that does not decode is a job failure, not a crash.
func handleAs[P any](ctx context.Context, c *CustomerConsumer, job broker.Job, fn func(ctx context.Context, p P) error) error {
	var p P
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", job.Type, err)
	}
	return fn(ctx, p)
}

func (c *CustomerConsumer) create(ctx context.Context, p CreateCustomerPayload) error {
	if err := verifyActor(ctx, c.Store, p.Actor); err != nil {
		return c.fail(ctx, EventCustomerCreateFailed, p, err)
	}

	if _, found, err := c.Store.GetCustomerByEmail(ctx, p.UserID, p.CustomerData.Email); err != nil {
		return c.fail(ctx, EventCustomerCreateFailed, p, err)
	} else if found {
		return c.fail(ctx, EventCustomerCreateFailed, p,
			fmt.Errorf("customer with email %s already exists", p.CustomerData.Email))
	}

	id := util.NewCustomerID()
	if err := c.Store.CreateCustomer(ctx, store.CustomerInsert{
		ID:         id,
		UserID:     p.UserID,
		Name:       p.CustomerData.Name,
		Email:      p.CustomerData.Email,
		Phone:      p.CustomerData.Phone,
		Attributes: p.CustomerData.Attributes,
		Now:        util.NowUTC(),
	}); err != nil {
		return c.fail(ctx, EventCustomerCreateFailed, p, err)
	}

	c.publish(ctx, EventCustomerCreated, map[string]any{
		"customerId": id,
		"name":       p.CustomerData.Name,
		"email":      p.CustomerData.Email,
		"userId":     p.UserID,
	})
	return nil
}

func (c *CustomerConsumer) update(ctx context.Context, p UpdateCustomerPayload) error {
	if err := verifyActor(ctx, c.Store, p.Actor); err != nil {
		return c.fail(ctx, EventCustomerUpdateFailed, p, err)
	}

	updated, err := c.Store.UpdateCustomer(ctx, store.CustomerUpdate{
		ID:         p.CustomerID,
		Name:       p.CustomerData.Name,
		Email:      p.CustomerData.Email,
		Phone:      p.CustomerData.Phone,
		Attributes: p.CustomerData.Attributes,
		Now:        util.NowUTC(),
	})
	if err != nil {
		return c.fail(ctx, EventCustomerUpdateFailed, p, err)
	}
	if !updated {
		return c.fail(ctx, EventCustomerUpdateFailed, p,
			fmt.Errorf("customer %s not found", p.CustomerID))
	}

	c.publish(ctx, EventCustomerUpdated, map[string]any{
		"customerId": p.CustomerID,
		"userId":     p.UserID,
	})
	return nil
}

func (c *CustomerConsumer) delete(ctx context.Context, p DeleteCustomerPayload) error {
	if err := verifyActor(ctx, c.Store, p.Actor); err != nil {
		return c.fail(ctx, EventCustomerDeleteFailed, p, err)
	}

	deleted, err := c.Store.SoftDeleteCustomer(ctx, p.CustomerID, util.NowUTC())
	if err != nil {
		return c.fail(ctx, EventCustomerDeleteFailed, p, err)
	}
	if !deleted {
		return c.fail(ctx, EventCustomerDeleteFailed, p,
			fmt.Errorf("customer %s not found", p.CustomerID))
	}

	c.publish(ctx, EventCustomerDeleted, map[string]any{
		"customerId": p.CustomerID,
		"userId":     p.UserID,
	})
	return nil
}

// ImportResult aggregates a bulk import. Batches succeed or fail
// independently; one bad batch never aborts the rest.
type ImportResult struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

func (c *CustomerConsumer) bulkImport(ctx context.Context, p BulkImportPayload) error {
	if err := verifyActor(ctx, c.Store, p.Actor); err != nil {
		return c.fail(ctx, EventImportFailed, p, err)
	}

	size := c.ImportBatchSize
	if size <= 0 {
		size = DefaultImportBatchSize
	}

	var result ImportResult
	for i, batch := range util.Partition(p.Customers, size) {
		ins := make([]store.CustomerInsert, 0, len(batch))
		now := util.NowUTC()
		for _, cd := range batch {
			ins = append(ins, store.CustomerInsert{
				ID:         util.NewCustomerID(),
				UserID:     p.UserID,
				Name:       cd.Name,
				Email:      cd.Email,
				Phone:      cd.Phone,
				Attributes: cd.Attributes,
				Now:        now,
			})
		}
		if err := c.Store.BulkInsertCustomers(ctx, ins); err != nil {
			result.Failed += len(batch)
			result.Errors = append(result.Errors, fmt.Sprintf("batch %d: %v", i+1, err))
			slog.Error("import batch failed", "batch", i+1, "size", len(batch), "err", err)
			continue
		}
		result.Imported += len(batch)
	}

	c.publish(ctx, EventImportCompleted, map[string]any{
		"userId":   p.UserID,
		"imported": result.Imported,
		"failed":   result.Failed,
		"errors":   result.Errors,
	})
	return nil
}

func (c *CustomerConsumer) updateStats(ctx context.Context, p UpdateStatsPayload) error {
	if err := verifyActor(ctx, c.Store, p.Actor); err != nil {
		return c.fail(ctx, EventStatsUpdateFailed, p, err)
	}

	updated, err := c.Store.UpdateCustomerStats(ctx, store.CustomerStatsUpdate{
		ID:         p.CustomerID,
		TotalSpend: p.Stats.TotalSpend,
		VisitCount: p.Stats.VisitCount,
		LastVisit:  p.Stats.LastVisit,
		Now:        util.NowUTC(),
	})
	if err != nil {
		return c.fail(ctx, EventStatsUpdateFailed, p, err)
	}
	if !updated {
		return c.fail(ctx, EventStatsUpdateFailed, p,
			fmt.Errorf("customer %s not found", p.CustomerID))
	}

	c.publish(ctx, EventStatsUpdated, map[string]any{
		"customerId": p.CustomerID,
		"userId":     p.UserID,
	})
	return nil
}

func (c *CustomerConsumer) publish(ctx context.Context, eventType string, data any) {
	if _, err := c.Events.Publish(ctx, eventType, eventType, data); err != nil {
		// Events are best-effort; the persistence step already succeeded.
		slog.Error("event publish failed", "event_type", eventType, "err", err)
	}
}

// fail publishes a typed failure event carrying the original payload for
// manual replay, then re-raises so the loop's dead-letter path fires too.
func (c *CustomerConsumer) fail(ctx context.Context, eventType string, payload any, cause error) error {
	if _, err := c.Events.Publish(ctx, eventType, eventType, map[string]any{
		"error":   cause.Error(),
		"payload": payload,
	}); err != nil {
		slog.Error("failure event publish failed", "event_type", eventType, "err", err)
	}
	return cause
}
