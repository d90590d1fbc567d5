package delivery

import (
	"context"
	"log/slog"
	"time"

	"engage/internal/domain"
	"engage/internal/observability"
	"engage/internal/store"
	"engage/internal/util"
)

type ReceiptStore interface {
	UpdateCommunicationLogByMessageID(ctx context.Context, in store.LogUpdate) (bool, error)
}

// ReceiptProcessor is the inbound delivery-receipt sink. The simulator calls
// it directly; a real vendor would reach it through a webhook endpoint.
type ReceiptProcessor struct {
	Store ReceiptStore
}

// HandleReceipt applies one receipt to its communication log. A receipt for
// an unknown messageId is reported and absorbed: returning an error would
// only make the vendor retry something we can never apply.
func (p *ReceiptProcessor) HandleReceipt(ctx context.Context, r domain.Receipt) error {
	md := map[string]string{
		"receipt_source": "vendor",
		"received_at":    util.NowUTC().Format(time.RFC3339Nano),
	}
	if r.VendorMessageID != "" {
		md["vendor_message_id"] = r.VendorMessageID
	}

	updated, err := p.Store.UpdateCommunicationLogByMessageID(ctx, store.LogUpdate{
		MessageID:     r.MessageID,
		Status:        r.Status,
		DeliveredAt:   r.DeliveredAt,
		FailureReason: r.FailureReason,
		Metadata:      md,
	})
	if err != nil {
		observability.Receipts.WithLabelValues("error").Inc()
		return err
	}
	if !updated {
		observability.Receipts.WithLabelValues("not_found").Inc()
		slog.Warn("receipt for unknown message",
			"message_id", r.MessageID,
			"vendor_message_id", r.VendorMessageID,
			"status", r.Status,
		)
		return nil
	}

	observability.Receipts.WithLabelValues(string(r.Status)).Inc()
	return nil
}
