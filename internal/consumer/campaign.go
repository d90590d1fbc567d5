package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"engage/internal/broker"
)

// Deliverer is the campaign delivery engine as this consumer sees it.
type Deliverer interface {
	Deliver(ctx context.Context, campaignID string) error
}

// CampaignConsumer handles the campaign queue: today a single job kind that
// hands the campaign to the delivery engine.
type CampaignConsumer struct {
	Users  UserFinder
	Engine Deliverer
	Events EventPublisher
}

func (c *CampaignConsumer) Handle(ctx context.Context, job broker.Job) error {
	switch job.Type {
	case JobDeliverCampaign:
		var p DeliverCampaignPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", job.Type, err)
		}
		return c.deliver(ctx, p)
	default:
		return fmt.Errorf("unknown campaign job type %q", job.Type)
	}
}

func (c *CampaignConsumer) deliver(ctx context.Context, p DeliverCampaignPayload) error {
	if err := verifyActor(ctx, c.Users, p.Actor); err != nil {
		return c.fail(ctx, p, err)
	}

	if err := c.Engine.Deliver(ctx, p.CampaignID); err != nil {
		return c.fail(ctx, p, err)
	}

	if _, err := c.Events.Publish(ctx, EventCampaignCompleted, EventCampaignCompleted, map[string]any{
		"campaignId": p.CampaignID,
		"userId":     p.UserID,
	}); err != nil {
		slog.Error("event publish failed", "event_type", EventCampaignCompleted, "err", err)
	}
	return nil
}

func (c *CampaignConsumer) fail(ctx context.Context, p DeliverCampaignPayload, cause error) error {
	if _, err := c.Events.Publish(ctx, EventCampaignDeliverFailed, EventCampaignDeliverFailed, map[string]any{
		"campaignId": p.CampaignID,
		"error":      cause.Error(),
		"payload":    p,
	}); err != nil {
		slog.Error("failure event publish failed", "event_type", EventCampaignDeliverFailed, "err", err)
	}
	return cause
}
