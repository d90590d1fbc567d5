package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"engage/internal/domain"
)

type stubSink struct {
	receipts []domain.Receipt
	err      error
}

func (s *stubSink) HandleReceipt(ctx context.Context, r domain.Receipt) error {
	if s.err != nil {
		return s.err
	}
	s.receipts = append(s.receipts, r)
	return nil
}

func TestWebhookReceipt(t *testing.T) {
	sink := &stubSink{}
	wh := &Webhook{Receipts: sink}
	s := New()
	wh.Register(s.Router)
	srv := httptest.NewServer(s.Router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/webhooks/receipts", "application/json",
		strings.NewReader(`{"messageId":"msg_1","status":"sent","vendorMessageId":"VM1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, sink.receipts, 1)
	require.Equal(t, "msg_1", sink.receipts[0].MessageID)
	require.Equal(t, domain.LogSent, sink.receipts[0].Status)
}

func TestWebhookReceiptRejectsBadInput(t *testing.T) {
	wh := &Webhook{Receipts: &stubSink{}}
	s := New()
	wh.Register(s.Router)
	srv := httptest.NewServer(s.Router)
	defer srv.Close()

	for _, body := range []string{
		`{not json`,
		`{"status":"sent"}`,
		`{"messageId":"msg_1"}`,
		`{"messageId":"msg_1","status":"queued"}`,
	} {
		resp, err := http.Post(srv.URL+"/v1/webhooks/receipts", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %s", body)
	}
}
