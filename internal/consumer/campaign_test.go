package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"engage/internal/broker"
	"engage/internal/domain"
)

type fakeUsers struct{ users map[string]domain.User }

func (f *fakeUsers) FindUser(ctx context.Context, id string) (domain.User, bool, error) {
	u, ok := f.users[id]
	return u, ok, nil
}

type fakeEngine struct {
	delivered []string
	err       error
}

func (f *fakeEngine) Deliver(ctx context.Context, campaignID string) error {
	f.delivered = append(f.delivered, campaignID)
	return f.err
}

func campaignJob(t *testing.T, p DeliverCampaignPayload) broker.Job {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return broker.Job{ID: "job_1", Type: JobDeliverCampaign, Payload: raw, Status: "pending"}
}

func TestDeliverCampaign(t *testing.T) {
	eng := &fakeEngine{}
	pub := &fakePublisher{}
	c := &CampaignConsumer{
		Users:  &fakeUsers{users: map[string]domain.User{"u1": {ID: "u1", Email: "owner@example.com"}}},
		Engine: eng,
		Events: pub,
	}

	err := c.Handle(context.Background(), campaignJob(t, DeliverCampaignPayload{
		CampaignID: "cmp_1",
		Actor:      Actor{UserID: "u1", UserEmail: "owner@example.com"},
	}))
	require.NoError(t, err)
	require.Equal(t, []string{"cmp_1"}, eng.delivered)
	require.Len(t, pub.byType(EventCampaignCompleted), 1)
}

func TestDeliverCampaignVerificationFailure(t *testing.T) {
	eng := &fakeEngine{}
	pub := &fakePublisher{}
	c := &CampaignConsumer{
		Users:  &fakeUsers{users: map[string]domain.User{}},
		Engine: eng,
		Events: pub,
	}

	err := c.Handle(context.Background(), campaignJob(t, DeliverCampaignPayload{
		CampaignID: "cmp_1",
		Actor:      Actor{UserID: "u-ghost"},
	}))
	var verr *domain.VerificationError
	require.ErrorAs(t, err, &verr)
	require.Empty(t, eng.delivered, "engine must not run for an unverified principal")
	require.Len(t, pub.byType(EventCampaignDeliverFailed), 1)
}

func TestDeliverCampaignEngineFailure(t *testing.T) {
	eng := &fakeEngine{err: errors.New("vendor down")}
	pub := &fakePublisher{}
	c := &CampaignConsumer{
		Users:  &fakeUsers{users: map[string]domain.User{"u1": {ID: "u1"}}},
		Engine: eng,
		Events: pub,
	}

	err := c.Handle(context.Background(), campaignJob(t, DeliverCampaignPayload{
		CampaignID: "cmp_1",
		Actor:      Actor{UserID: "u1"},
	}))
	require.Error(t, err)

	failures := pub.byType(EventCampaignDeliverFailed)
	require.Len(t, failures, 1)
	var data struct {
		CampaignID string `json:"campaignId"`
		Error      string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(failures[0].Data, &data))
	require.Equal(t, "cmp_1", data.CampaignID)
	require.Contains(t, data.Error, "vendor down")
	require.Empty(t, pub.byType(EventCampaignCompleted))
}

func TestUnknownCampaignJobType(t *testing.T) {
	c := &CampaignConsumer{
		Users:  &fakeUsers{},
		Engine: &fakeEngine{},
		Events: &fakePublisher{},
	}
	err := c.Handle(context.Background(), broker.Job{ID: "job_x", Type: "NOT_A_JOB", Payload: json.RawMessage(`{}`)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown campaign job type")
}
