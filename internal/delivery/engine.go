// Package delivery holds the campaign fan-out engine and the receipt sink
// that closes the loop when the vendor reports back.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"engage/internal/domain"
	"engage/internal/observability"
	"engage/internal/store"
	"engage/internal/util"
	"engage/internal/vendor"
)

const DefaultBatchSize = 10

type Store interface {
	GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error)
	ListCampaignRecipients(ctx context.Context, campaignID string) ([]store.Recipient, error)
	UpdateCampaignStatus(ctx context.Context, in store.CampaignStatusUpdate) error
	UpdateCampaignStats(ctx context.Context, in store.CampaignStatsUpdate) error
	BulkInsertCommunicationLogs(ctx context.Context, logs []domain.CommunicationLog) error
	UpdateCommunicationLogsByMessageIDs(ctx context.Context, in store.BulkLogUpdate) (int64, error)
}

type Vendor interface {
	SendBulk(ctx context.Context, msgs []vendor.Message) (vendor.BulkResult, error)
}

// Engine drives one campaign through pending -> processing -> completed or
// failed, batch by batch against the vendor.
type Engine struct {
	Store  Store
	Vendor Vendor

	// Breaker guards the per-batch vendor call. An open breaker takes the
	// same path as a thrown batch: force-fail, no receipts awaited.
	Breaker *gobreaker.CircuitBreaker

	BatchSize       int
	InterBatchDelay time.Duration
}

func (e *Engine) batchSize() int {
	if e.BatchSize > 0 {
		return e.BatchSize
	}
	return DefaultBatchSize
}

// Deliver runs the full fan-out for one campaign. Any error marks the
// campaign failed and propagates, so the consumer loop dead-letters the job.
func (e *Engine) Deliver(ctx context.Context, campaignID string) error {
	err := e.deliver(ctx, campaignID)
	if err != nil {
		// The failure mark must land even when ctx is the reason we failed.
		markCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		now := util.NowUTC()
		if markErr := e.Store.UpdateCampaignStatus(markCtx, store.CampaignStatusUpdate{
			ID:            campaignID,
			Status:        domain.CampaignFailed,
			CompletedAt:   &now,
			FailureReason: err.Error(),
		}); markErr != nil {
			slog.Error("campaign failure mark failed", "err", markErr, "campaign_id", campaignID)
		}
	}
	return err
}

func (e *Engine) deliver(ctx context.Context, campaignID string) error {
	campaign, found, err := e.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("campaign %s not found", campaignID)
	}
	// Idempotent consumer: a redelivered job for a finished campaign is a no-op.
	if campaign.Status == domain.CampaignCompleted || campaign.Status == domain.CampaignFailed {
		slog.Info("campaign already terminal, skipping", "campaign_id", campaignID, "status", campaign.Status)
		return nil
	}

	startedAt := util.NowUTC()
	if err := e.Store.UpdateCampaignStatus(ctx, store.CampaignStatusUpdate{
		ID:        campaignID,
		Status:    domain.CampaignProcessing,
		StartedAt: &startedAt,
	}); err != nil {
		return err
	}

	recipients, err := e.Store.ListCampaignRecipients(ctx, campaignID)
	if err != nil {
		return err
	}

	batches := util.Partition(recipients, e.batchSize())
	slog.Info("campaign delivery starting",
		"campaign_id", campaignID,
		"recipients", len(recipients),
		"batches", len(batches),
	)

	var limiter *rate.Limiter
	if e.InterBatchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(e.InterBatchDelay), 1)
	}

	var sent, failed int
	for i, batch := range batches {
		if limiter != nil {
			// First wait is free; later ones pace batches against the vendor.
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		logs, msgs := e.renderBatch(campaign, batch)
		if err := e.Store.BulkInsertCommunicationLogs(ctx, logs); err != nil {
			return err
		}

		res, batchErr := e.sendBatch(ctx, msgs)
		if batchErr != nil {
			// Whole batch failed before individual outcomes existed. No
			// receipt will arrive for these logs, so close them here, in the
			// same step as the tally.
			observability.CampaignBatches.WithLabelValues("vendor_error").Inc()
			slog.Error("campaign batch send failed",
				"err", batchErr, "campaign_id", campaignID, "batch", i+1,
			)
			now := util.NowUTC()
			if _, err := e.Store.UpdateCommunicationLogsByMessageIDs(ctx, store.BulkLogUpdate{
				MessageIDs:    messageIDs(logs),
				Status:        domain.LogFailed,
				DeliveredAt:   &now,
				FailureReason: "batch send failed: " + batchErr.Error(),
			}); err != nil {
				return err
			}
			failed += len(batch)
			continue
		}

		observability.CampaignBatches.WithLabelValues("ok").Inc()
		sent += res.Sent
		failed += res.Failed
	}

	total := len(recipients)
	stats := domain.DeliveryStats{Sent: sent, Failed: failed, Total: total}
	if total > 0 {
		stats.SuccessRate = float64(sent) / float64(total) * 100
	}
	if err := e.Store.UpdateCampaignStats(ctx, store.CampaignStatsUpdate{ID: campaignID, Stats: stats}); err != nil {
		return err
	}

	completedAt := util.NowUTC()
	if err := e.Store.UpdateCampaignStatus(ctx, store.CampaignStatusUpdate{
		ID:          campaignID,
		Status:      domain.CampaignCompleted,
		CompletedAt: &completedAt,
	}); err != nil {
		return err
	}

	slog.Info("campaign delivery completed",
		"campaign_id", campaignID, "sent", sent, "failed", failed, "total", total,
	)
	return nil
}

// renderBatch personalizes subject/body per recipient and pairs each new
// pending log with its vendor message.
func (e *Engine) renderBatch(campaign domain.Campaign, batch []store.Recipient) ([]domain.CommunicationLog, []vendor.Message) {
	logs := make([]domain.CommunicationLog, 0, len(batch))
	msgs := make([]vendor.Message, 0, len(batch))
	tpl := campaign.MessageTemplate

	for _, r := range batch {
		vars := map[string]string{
			"name":      r.Name,
			"firstName": util.FirstName(r.Name),
			"email":     r.Email,
		}
		subject := util.RenderTemplate(tpl.Subject, vars)
		body := util.RenderTemplate(tpl.Body, vars)
		messageID := util.NewMessageID()

		logs = append(logs, domain.CommunicationLog{
			MessageID:      messageID,
			CampaignID:     campaign.ID,
			CustomerID:     r.CustomerID,
			RecipientEmail: r.Email,
			Subject:        subject,
			Body:           body,
			Status:         domain.LogPending,
		})
		msgs = append(msgs, vendor.Message{
			MessageID:  messageID,
			CampaignID: campaign.ID,
			CustomerID: r.CustomerID,
			To:         r.Email,
			Subject:    subject,
			Body:       body,
			FromName:   tpl.FromName,
			FromEmail:  tpl.FromEmail,
		})
	}
	return logs, msgs
}

func (e *Engine) sendBatch(ctx context.Context, msgs []vendor.Message) (vendor.BulkResult, error) {
	call := func() (any, error) {
		return e.Vendor.SendBulk(ctx, msgs)
	}

	var resAny any
	var err error
	if e.Breaker != nil {
		resAny, err = e.Breaker.Execute(call)
	} else {
		resAny, err = call()
	}
	if err != nil {
		ids := make([]string, 0, len(msgs))
		for _, m := range msgs {
			ids = append(ids, m.MessageID)
		}
		return vendor.BulkResult{}, &vendor.BatchError{MessageIDs: ids, Err: err}
	}
	return resAny.(vendor.BulkResult), nil
}

func messageIDs(logs []domain.CommunicationLog) []string {
	ids := make([]string, 0, len(logs))
	for _, l := range logs {
		ids = append(ids, l.MessageID)
	}
	return ids
}
