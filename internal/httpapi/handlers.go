package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"engage/internal/domain"
	"engage/internal/observability"
	"engage/internal/service"
)

type API struct {
	Ingest  *service.IngestService
	Monitor *service.MonitorService
}

func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/v1/customers", a.handleCreateCustomer).Methods(http.MethodPost)
	r.HandleFunc("/v1/customers/{id}", a.handleUpdateCustomer).Methods(http.MethodPut)
	r.HandleFunc("/v1/customers/{id}", a.handleDeleteCustomer).Methods(http.MethodDelete)
	r.HandleFunc("/v1/customers/import", a.handleImportCustomers).Methods(http.MethodPost)
	r.HandleFunc("/v1/customers/{id}/stats", a.handleUpdateCustomerStats).Methods(http.MethodPut)
	r.HandleFunc("/v1/campaigns", a.handleCreateCampaign).Methods(http.MethodPost)
	r.HandleFunc("/v1/campaigns/{id}/deliver", a.handleDeliverCampaign).Methods(http.MethodPost)
	r.HandleFunc("/v1/campaigns/{id}/deliveries", a.handleCampaignDeliveries).Methods(http.MethodGet)
	r.HandleFunc("/v1/queues/{name}/stats", a.handleQueueStats).Methods(http.MethodGet)
	r.HandleFunc("/v1/system/status", a.handleSystemStatus).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/queues/{name}/jobs", a.handleEnqueueRaw).Methods(http.MethodPost)
	r.HandleFunc("/v1/admin/channels/{name}/events", a.handlePublishRaw).Methods(http.MethodPost)
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, route string, code int, v any) {
	observability.APIRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the service error taxonomy onto HTTP: validation is the
// caller's fault, missing campaigns are 404, non-pending campaigns are 409,
// and anything else is a broker or database problem.
func writeError(w http.ResponseWriter, route string, err error) {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, domain.ErrMissingFields):
		code = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState):
		code = http.StatusConflict
	}
	if code == http.StatusBadGateway {
		slog.Error("request failed", "route", route, "err", err)
	}
	observability.APIRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	http.Error(w, err.Error(), code)
}

func badJSON(w http.ResponseWriter, route string) {
	observability.APIRequests.WithLabelValues(route, "400").Inc()
	http.Error(w, "invalid json", http.StatusBadRequest)
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/customers"
	var req domain.CreateCustomerRequest
	if err := decode(r, &req); err != nil {
		badJSON(w, route)
		return
	}
	resp, err := a.Ingest.SubmitCreateCustomer(r.Context(), req)
	if err != nil {
		writeError(w, route, err)
		return
	}
	writeJSON(w, route, http.StatusAccepted, resp)
}

func (a *API) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/customers/{id}"
	var req domain.UpdateCustomerRequest
	if err := decode(r, &req); err != nil {
		badJSON(w, route)
		return
	}
	req.CustomerID = mux.Vars(r)["id"]
	resp, err := a.Ingest.SubmitUpdateCustomer(r.Context(), req)
	if err != nil {
		writeError(w, route, err)
		return
	}
	writeJSON(w, route, http.StatusAccepted, resp)
}

func (a *API) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/customers/{id}"
	var req domain.DeleteCustomerRequest
	if err := decode(r, &req); err != nil {
		badJSON(w, route)
		return
	}
	req.CustomerID = mux.Vars(r)["id"]
	resp, err := a.Ingest.SubmitDeleteCustomer(r.Context(), req)
	if err != nil {
		writeError(w, route, err)
		return
	}
	writeJSON(w, route, http.StatusAccepted, resp)
}

func (a *API) handleImportCustomers(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/customers/import"
	var req domain.ImportCustomersRequest
	if err := decode(r, &req); err != nil {
		badJSON(w, route)
		return
	}
	resp, err := a.Ingest.SubmitImportCustomers(r.Context(), req)
	if err != nil {
		writeError(w, route, err)
		return
	}
	writeJSON(w, route, http.StatusAccepted, resp)
}

func (a *API) handleUpdateCustomerStats(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/customers/{id}/stats"
	var req domain.UpdateCustomerStatsRequest
	if err := decode(r, &req); err != nil {
		badJSON(w, route)
		return
	}
	req.CustomerID = mux.Vars(r)["id"]
	resp, err := a.Ingest.SubmitUpdateCustomerStats(r.Context(), req)
	if err != nil {
		writeError(w, route, err)
		return
	}
	writeJSON(w, route, http.StatusAccepted, resp)
}

func (a *API) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/campaigns"
	var req domain.CreateCampaignRequest
	if err := decode(r, &req); err != nil {
		badJSON(w, route)
		return
	}
	campaign, err := a.Ingest.CreateCampaign(r.Context(), req)
	if err != nil {
		writeError(w, route, err)
		return
	}
	writeJSON(w, route, http.StatusCreated, campaign)
}

func (a *API) handleDeliverCampaign(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/campaigns/{id}/deliver"
	var req domain.DeliverCampaignRequest
	if err := decode(r, &req); err != nil {
		badJSON(w, route)
		return
	}
	req.CampaignID = mux.Vars(r)["id"]
	resp, err := a.Ingest.SubmitDeliverCampaign(r.Context(), req)
	if err != nil {
		writeError(w, route, err)
		return
	}
	writeJSON(w, route, http.StatusAccepted, resp)
}

func (a *API) handleCampaignDeliveries(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/campaigns/{id}/deliveries"
	deliveries, err := a.Monitor.CampaignDeliveries(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, route, err)
		return
	}
	writeJSON(w, route, http.StatusOK, deliveries)
}

func (a *API) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/queues/{name}/stats"
	stats, err := a.Monitor.QueueStats(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, route, err)
		return
	}
	writeJSON(w, route, http.StatusOK, stats)
}

func (a *API) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/system/status"
	status, err := a.Monitor.SystemStatus(r.Context())
	if err != nil {
		writeError(w, route, err)
		return
	}
	writeJSON(w, route, http.StatusOK, status)
}

// rawJob and rawEvent back the manual test surface.
type rawJob struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type rawEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (a *API) handleEnqueueRaw(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/admin/queues/{name}/jobs"
	var req rawJob
	if err := decode(r, &req); err != nil {
		badJSON(w, route)
		return
	}
	resp, err := a.Ingest.EnqueueRaw(r.Context(), mux.Vars(r)["name"], req.Type, req.Payload)
	if err != nil {
		writeError(w, route, err)
		return
	}
	writeJSON(w, route, http.StatusAccepted, resp)
}

func (a *API) handlePublishRaw(w http.ResponseWriter, r *http.Request) {
	const route = "/v1/admin/channels/{name}/events"
	var req rawEvent
	if err := decode(r, &req); err != nil {
		badJSON(w, route)
		return
	}
	ev, err := a.Ingest.PublishRaw(r.Context(), mux.Vars(r)["name"], req.Type, req.Data)
	if err != nil {
		writeError(w, route, err)
		return
	}
	writeJSON(w, route, http.StatusAccepted, ev)
}
