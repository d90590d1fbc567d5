// Package service holds the API-side surfaces: validated submission onto the
// broker and read-only monitoring queries.
package service

import (
	"context"
	"fmt"

	"engage/internal/broker"
	"engage/internal/consumer"
	"engage/internal/domain"
	"engage/internal/observability"
	"engage/internal/store"
	"engage/internal/util"
)

type Producer interface {
	Enqueue(ctx context.Context, queue, jobType string, payload any) (broker.Job, error)
	Publish(ctx context.Context, channel, eventType string, data any) (broker.Event, error)
}

type CampaignStore interface {
	CreateCampaign(ctx context.Context, in store.CampaignInsert) error
	GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error)
}

// IngestService validates work and hands it to the broker. The caller gets
// an immediate accept; everything downstream is asynchronous.
type IngestService struct {
	Campaigns CampaignStore
	Broker    Producer

	CustomerQueue string
	CampaignQueue string
}

func (s *IngestService) enqueue(ctx context.Context, queue, jobType string, payload any) (domain.QueuedResponse, error) {
	job, err := s.Broker.Enqueue(ctx, queue, jobType, payload)
	if err != nil {
		observability.Enqueues.WithLabelValues(queue, "error").Inc()
		return domain.QueuedResponse{}, err
	}
	observability.Enqueues.WithLabelValues(queue, "ok").Inc()
	return domain.QueuedResponse{JobID: job.ID, Queue: queue, Type: jobType, Status: "queued"}, nil
}

func (s *IngestService) SubmitCreateCustomer(ctx context.Context, req domain.CreateCustomerRequest) (domain.QueuedResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.QueuedResponse{}, err
	}
	return s.enqueue(ctx, s.CustomerQueue, consumer.JobCreateCustomer, consumer.CreateCustomerPayload{
		CustomerData: consumer.CustomerData{
			Name:       req.Name,
			Email:      req.Email,
			Phone:      req.Phone,
			Attributes: req.Attributes,
		},
		Actor: consumer.Actor{UserID: req.UserID, UserEmail: req.UserEmail},
	})
}

func (s *IngestService) SubmitUpdateCustomer(ctx context.Context, req domain.UpdateCustomerRequest) (domain.QueuedResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.QueuedResponse{}, err
	}
	return s.enqueue(ctx, s.CustomerQueue, consumer.JobUpdateCustomer, consumer.UpdateCustomerPayload{
		CustomerID: req.CustomerID,
		CustomerData: consumer.CustomerData{
			Name:       req.Name,
			Email:      req.Email,
			Phone:      req.Phone,
			Attributes: req.Attributes,
		},
		Actor: consumer.Actor{UserID: req.UserID, UserEmail: req.UserEmail},
	})
}

func (s *IngestService) SubmitDeleteCustomer(ctx context.Context, req domain.DeleteCustomerRequest) (domain.QueuedResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.QueuedResponse{}, err
	}
	return s.enqueue(ctx, s.CustomerQueue, consumer.JobDeleteCustomer, consumer.DeleteCustomerPayload{
		CustomerID: req.CustomerID,
		Actor:      consumer.Actor{UserID: req.UserID, UserEmail: req.UserEmail},
	})
}

func (s *IngestService) SubmitUpdateCustomerStats(ctx context.Context, req domain.UpdateCustomerStatsRequest) (domain.QueuedResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.QueuedResponse{}, err
	}
	return s.enqueue(ctx, s.CustomerQueue, consumer.JobUpdateCustomerStats, consumer.UpdateStatsPayload{
		CustomerID: req.CustomerID,
		Stats: consumer.CustomerStats{
			TotalSpend: req.TotalSpend,
			VisitCount: req.VisitCount,
			LastVisit:  req.LastVisit,
		},
		Actor: consumer.Actor{UserID: req.UserID, UserEmail: req.UserEmail},
	})
}

func (s *IngestService) SubmitImportCustomers(ctx context.Context, req domain.ImportCustomersRequest) (domain.QueuedResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.QueuedResponse{}, err
	}
	customers := make([]consumer.CustomerData, 0, len(req.Customers))
	for _, rec := range req.Customers {
		customers = append(customers, consumer.CustomerData{
			Name:       rec.Name,
			Email:      rec.Email,
			Phone:      rec.Phone,
			Attributes: rec.Attributes,
		})
	}
	return s.enqueue(ctx, s.CustomerQueue, consumer.JobBulkImportCustomers, consumer.BulkImportPayload{
		Customers: customers,
		Actor:     consumer.Actor{UserID: req.UserID, UserEmail: req.UserEmail},
	})
}

// CreateCampaign writes the campaign row directly; delivery is a separate,
// explicitly submitted job.
func (s *IngestService) CreateCampaign(ctx context.Context, req domain.CreateCampaignRequest) (domain.Campaign, error) {
	if err := req.Validate(); err != nil {
		return domain.Campaign{}, err
	}
	id := util.NewID("cmp")
	now := util.NowUTC()
	if err := s.Campaigns.CreateCampaign(ctx, store.CampaignInsert{
		ID:           id,
		UserID:       req.UserID,
		Name:         req.Name,
		SegmentID:    req.SegmentID,
		Template:     req.Template,
		AudienceSize: req.AudienceSize,
		Now:          now,
	}); err != nil {
		return domain.Campaign{}, err
	}
	return domain.Campaign{
		ID:              id,
		UserID:          req.UserID,
		Name:            req.Name,
		SegmentID:       req.SegmentID,
		MessageTemplate: req.Template,
		AudienceSize:    req.AudienceSize,
		Status:          domain.CampaignPending,
		CreatedAt:       now,
	}, nil
}

func (s *IngestService) SubmitDeliverCampaign(ctx context.Context, req domain.DeliverCampaignRequest) (domain.QueuedResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.QueuedResponse{}, err
	}
	campaign, found, err := s.Campaigns.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		return domain.QueuedResponse{}, err
	}
	if !found {
		return domain.QueuedResponse{}, fmt.Errorf("campaign %s: %w", req.CampaignID, ErrNotFound)
	}
	if campaign.Status != domain.CampaignPending {
		return domain.QueuedResponse{}, fmt.Errorf("campaign %s is %s, delivery needs pending: %w", campaign.ID, campaign.Status, ErrInvalidState)
	}
	return s.enqueue(ctx, s.CampaignQueue, consumer.JobDeliverCampaign, consumer.DeliverCampaignPayload{
		CampaignID: req.CampaignID,
		Actor:      consumer.Actor{UserID: req.UserID, UserEmail: req.UserEmail},
	})
}

// EnqueueRaw and PublishRaw back the manual test/admin surface: arbitrary
// jobs onto arbitrary queues, arbitrary events onto arbitrary channels.
func (s *IngestService) EnqueueRaw(ctx context.Context, queue, jobType string, payload any) (domain.QueuedResponse, error) {
	if queue == "" || jobType == "" {
		return domain.QueuedResponse{}, domain.ErrMissingFields
	}
	return s.enqueue(ctx, queue, jobType, payload)
}

func (s *IngestService) PublishRaw(ctx context.Context, channel, eventType string, data any) (broker.Event, error) {
	if channel == "" || eventType == "" {
		return broker.Event{}, domain.ErrMissingFields
	}
	ev, err := s.Broker.Publish(ctx, channel, eventType, data)
	if err != nil {
		return broker.Event{}, err
	}
	observability.EventsPublished.WithLabelValues(channel).Inc()
	return ev, nil
}
