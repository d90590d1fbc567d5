package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"engage/internal/broker"
	"engage/internal/domain"
	"engage/internal/service"
	"engage/internal/store"
	"engage/internal/util"
)

type stubBroker struct {
	jobs []broker.Job
}

func (s *stubBroker) Enqueue(ctx context.Context, queue, jobType string, payload any) (broker.Job, error) {
	raw, _ := json.Marshal(payload)
	job := broker.Job{ID: util.NewJobID(), Type: jobType, Payload: raw, Status: "pending"}
	s.jobs = append(s.jobs, job)
	return job, nil
}

func (s *stubBroker) Publish(ctx context.Context, channel, eventType string, data any) (broker.Event, error) {
	raw, _ := json.Marshal(data)
	return broker.Event{ID: util.NewEventID(), Type: eventType, Data: raw}, nil
}

func (s *stubBroker) QueueStats(ctx context.Context, queue string) (broker.QueueStats, error) {
	return broker.QueueStats{Pending: 2, Failed: 1, Total: 3}, nil
}

func (s *stubBroker) HealthCheck(ctx context.Context) broker.Health {
	return broker.Health{Healthy: true, CheckedAt: util.NowUTC()}
}

type stubCampaigns struct {
	campaigns map[string]domain.Campaign
}

func (s *stubCampaigns) CreateCampaign(ctx context.Context, in store.CampaignInsert) error {
	return nil
}

func (s *stubCampaigns) GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error) {
	c, ok := s.campaigns[id]
	return c, ok, nil
}

func (s *stubCampaigns) CountCommunicationLogsByStatus(ctx context.Context, campaignID string) (map[domain.LogStatus]int, error) {
	return map[domain.LogStatus]int{domain.LogSent: 9, domain.LogFailed: 1}, nil
}

func newTestServer(campaigns map[string]domain.Campaign) (*httptest.Server, *stubBroker) {
	bk := &stubBroker{}
	cs := &stubCampaigns{campaigns: campaigns}
	api := &API{
		Ingest: &service.IngestService{
			Campaigns:     cs,
			Broker:        bk,
			CustomerQueue: "customers",
			CampaignQueue: "campaigns",
		},
		Monitor: &service.MonitorService{
			Broker: bk,
			Logs:   cs,
			Queues: []string{"customers", "campaigns"},
		},
	}
	s := New()
	api.Register(s.Router)
	return httptest.NewServer(s.Router), bk
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestCreateCustomerAccepted(t *testing.T) {
	srv, bk := newTestServer(nil)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/v1/customers",
		`{"name":"Ada","email":"ada@example.com","userId":"u1","userEmail":"owner@example.com"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var queued domain.QueuedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&queued))
	require.Equal(t, "queued", queued.Status)
	require.Equal(t, "customers", queued.Queue)
	require.NotEmpty(t, queued.JobID)
	require.Len(t, bk.jobs, 1)
}

func TestCreateCustomerBadRequests(t *testing.T) {
	srv, bk := newTestServer(nil)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/v1/customers", `{not json`)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/v1/customers", `{"email":"ada@example.com"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.Empty(t, bk.jobs)
}

func TestUpdateCustomerUsesPathID(t *testing.T) {
	srv, bk := newTestServer(nil)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/v1/customers/cus_42",
		strings.NewReader(`{"name":"Ada","email":"ada@example.com","userId":"u1"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Len(t, bk.jobs, 1)
	var payload struct {
		CustomerID string `json:"customerId"`
	}
	require.NoError(t, json.Unmarshal(bk.jobs[0].Payload, &payload))
	require.Equal(t, "cus_42", payload.CustomerID)
}

func TestDeliverCampaignErrors(t *testing.T) {
	srv, _ := newTestServer(map[string]domain.Campaign{
		"cmp_done": {ID: "cmp_done", Status: domain.CampaignCompleted},
	})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/v1/campaigns/cmp_ghost/deliver", `{"userId":"u1"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/v1/campaigns/cmp_done/deliver", `{"userId":"u1"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeliverCampaignAccepted(t *testing.T) {
	srv, bk := newTestServer(map[string]domain.Campaign{
		"cmp_1": {ID: "cmp_1", Status: domain.CampaignPending},
	})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/v1/campaigns/cmp_1/deliver", `{"userId":"u1"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, bk.jobs, 1)
	require.Equal(t, "DELIVER_CAMPAIGN", bk.jobs[0].Type)
}

func TestCampaignDeliveriesEndpoint(t *testing.T) {
	srv, _ := newTestServer(map[string]domain.Campaign{
		"cmp_1": {ID: "cmp_1", Status: domain.CampaignCompleted},
	})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/campaigns/cmp_1/deliveries")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var d service.CampaignDeliveries
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	require.Equal(t, "cmp_1", d.Campaign.ID)
	require.Equal(t, 9, d.Breakdown[domain.LogSent])
}

func TestQueueStatsAndSystemStatus(t *testing.T) {
	srv, _ := newTestServer(nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/queues/customers/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats broker.QueueStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Equal(t, int64(3), stats.Total)

	resp2, err := http.Get(srv.URL + "/v1/system/status")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var status service.SystemStatus
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&status))
	require.True(t, status.Broker.Healthy)
	require.Equal(t, int64(6), status.Totals.Total)
}

func TestAdminEnqueue(t *testing.T) {
	srv, bk := newTestServer(nil)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/v1/admin/queues/adhoc/jobs",
		`{"type":"PING","payload":{"k":"v"}}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, bk.jobs, 1)
	require.Equal(t, "PING", bk.jobs[0].Type)
}
