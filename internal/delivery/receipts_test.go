package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"engage/internal/domain"
	"engage/internal/store"
)

type fakeReceiptStore struct {
	updates []store.LogUpdate
	known   bool
	err     error
}

func (f *fakeReceiptStore) UpdateCommunicationLogByMessageID(ctx context.Context, in store.LogUpdate) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.updates = append(f.updates, in)
	return f.known, nil
}

func TestHandleReceiptSent(t *testing.T) {
	st := &fakeReceiptStore{known: true}
	p := &ReceiptProcessor{Store: st}

	now := time.Now().UTC()
	err := p.HandleReceipt(context.Background(), domain.Receipt{
		MessageID:       "msg_1",
		Status:          domain.LogSent,
		DeliveredAt:     &now,
		VendorMessageID: "VM123",
	})
	require.NoError(t, err)

	require.Len(t, st.updates, 1)
	up := st.updates[0]
	require.Equal(t, "msg_1", up.MessageID)
	require.Equal(t, domain.LogSent, up.Status)
	require.Equal(t, &now, up.DeliveredAt)
	require.Equal(t, "vendor", up.Metadata["receipt_source"])
	require.Equal(t, "VM123", up.Metadata["vendor_message_id"])
	require.NotEmpty(t, up.Metadata["received_at"])
}

func TestHandleReceiptFailed(t *testing.T) {
	st := &fakeReceiptStore{known: true}
	p := &ReceiptProcessor{Store: st}

	err := p.HandleReceipt(context.Background(), domain.Receipt{
		MessageID:     "msg_1",
		Status:        domain.LogFailed,
		FailureReason: "mailbox full",
	})
	require.NoError(t, err)
	require.Equal(t, "mailbox full", st.updates[0].FailureReason)
}

func TestHandleReceiptUnknownMessageAbsorbed(t *testing.T) {
	st := &fakeReceiptStore{known: false}
	p := &ReceiptProcessor{Store: st}

	err := p.HandleReceipt(context.Background(), domain.Receipt{
		MessageID: "msg_ghost",
		Status:    domain.LogSent,
	})
	require.NoError(t, err, "unknown receipts must not bounce back to the vendor")
}

func TestHandleReceiptStoreError(t *testing.T) {
	st := &fakeReceiptStore{err: errors.New("db down")}
	p := &ReceiptProcessor{Store: st}

	err := p.HandleReceipt(context.Background(), domain.Receipt{MessageID: "msg_1", Status: domain.LogSent})
	require.Error(t, err)
}
