package consumer

import (
	"context"
	"strings"
	"time"

	"engage/internal/broker"
	"engage/internal/domain"
)

// Job kinds form a closed set per queue; an unknown kind is an error (and a
// dead letter), not a silent drop.
const (
	JobCreateCustomer      = "CREATE_CUSTOMER"
	JobUpdateCustomer      = "UPDATE_CUSTOMER"
	JobDeleteCustomer      = "DELETE_CUSTOMER"
	JobBulkImportCustomers = "BULK_IMPORT_CUSTOMERS"
	JobUpdateCustomerStats = "UPDATE_CUSTOMER_STATS"

	JobDeliverCampaign = "DELIVER_CAMPAIGN"
)

// Event channels; the channel name doubles as the event type.
const (
	EventCustomerCreated       = "customer.created"
	EventCustomerCreateFailed  = "customer.creation.failed"
	EventCustomerUpdated       = "customer.updated"
	EventCustomerUpdateFailed  = "customer.update.failed"
	EventCustomerDeleted       = "customer.deleted"
	EventCustomerDeleteFailed  = "customer.deletion.failed"
	EventImportCompleted       = "customer.import.completed"
	EventImportFailed          = "customer.import.failed"
	EventStatsUpdated          = "customer.stats.updated"
	EventStatsUpdateFailed     = "customer.stats.update.failed"
	EventCampaignCompleted     = "campaign.completed"
	EventCampaignDeliverFailed = "campaign.delivery.failed"
)

// Actor is the acting principal a job carries. Consumers re-verify it against
// the user store before mutating anything; stale or forged payloads fail with
// a VerificationError.
type Actor struct {
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
}

type CustomerData struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type CustomerStats struct {
	TotalSpend float64    `json:"totalSpend"`
	VisitCount int        `json:"visitCount"`
	LastVisit  *time.Time `json:"lastVisit,omitempty"`
}

type CreateCustomerPayload struct {
	CustomerData CustomerData `json:"customerData"`
	Actor
}

type UpdateCustomerPayload struct {
	CustomerID   string       `json:"customerId"`
	CustomerData CustomerData `json:"customerData"`
	Actor
}

type DeleteCustomerPayload struct {
	CustomerID string `json:"customerId"`
	Actor
}

type BulkImportPayload struct {
	Customers []CustomerData `json:"customers"`
	Actor
}

type UpdateStatsPayload struct {
	CustomerID string        `json:"customerId"`
	Stats      CustomerStats `json:"stats"`
	Actor
}

type DeliverCampaignPayload struct {
	CampaignID string `json:"campaignId"`
	Actor
}

// EventPublisher is the slice of the broker domain consumers publish through.
type EventPublisher interface {
	Publish(ctx context.Context, channel, eventType string, data any) (broker.Event, error)
}

type UserFinder interface {
	FindUser(ctx context.Context, id string) (domain.User, bool, error)
}

// verifyActor checks the acting principal against the user store.
func verifyActor(ctx context.Context, users UserFinder, actor Actor) error {
	if actor.UserID == "" {
		return domain.NewVerificationError("", "missing acting user")
	}
	u, found, err := users.FindUser(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !found {
		return domain.NewVerificationError(actor.UserID, "user not found")
	}
	if actor.UserEmail != "" && !strings.EqualFold(u.Email, actor.UserEmail) {
		return domain.NewVerificationError(actor.UserID, "email mismatch")
	}
	return nil
}
