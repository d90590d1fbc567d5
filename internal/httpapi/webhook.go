package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"engage/internal/domain"
)

type ReceiptSink interface {
	HandleReceipt(ctx context.Context, r domain.Receipt) error
}

// Webhook receives delivery receipts over HTTP. The in-process simulator
// bypasses it, but an external vendor posts here.
type Webhook struct {
	Receipts ReceiptSink
}

func (w *Webhook) Register(r *mux.Router) {
	r.HandleFunc("/v1/webhooks/receipts", w.handleReceipt).Methods(http.MethodPost)
}

func (w *Webhook) handleReceipt(rw http.ResponseWriter, r *http.Request) {
	var receipt domain.Receipt
	if err := json.NewDecoder(r.Body).Decode(&receipt); err != nil {
		http.Error(rw, "invalid json", http.StatusBadRequest)
		return
	}
	if receipt.MessageID == "" || receipt.Status == "" {
		http.Error(rw, "missing fields", http.StatusBadRequest)
		return
	}
	if receipt.Status != domain.LogSent && receipt.Status != domain.LogFailed {
		http.Error(rw, "unknown status", http.StatusBadRequest)
		return
	}

	if err := w.Receipts.HandleReceipt(r.Context(), receipt); err != nil {
		slog.Error("webhook receipt failed", "err", err, "message_id", receipt.MessageID)
		http.Error(rw, "dependency error", http.StatusInternalServerError)
		return
	}
	rw.WriteHeader(http.StatusOK)
}
