package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engage_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engage_enqueue_total", Help: "Broker enqueue results"},
		[]string{"queue", "result"},
	)
	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engage_jobs_processed_total", Help: "Consumer loop job outcomes"},
		[]string{"queue", "result"},
	)
	DeadLetters = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engage_dead_letters_total", Help: "Jobs moved to a dead-letter list"},
		[]string{"queue"},
	)
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engage_events_published_total", Help: "Events published per channel"},
		[]string{"channel"},
	)
	VendorSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engage_vendor_send_total", Help: "Vendor simulator send outcomes"},
		[]string{"result"},
	)
	VendorSendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "engage_vendor_send_latency_seconds", Help: "Vendor send latency"},
	)
	Receipts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engage_delivery_receipts_total", Help: "Delivery receipt outcomes"},
		[]string{"status"},
	)
	CampaignBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engage_campaign_batches_total", Help: "Campaign batch outcomes"},
		[]string{"result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		APIRequests, Enqueues, JobsProcessed, DeadLetters, EventsPublished,
		VendorSends, VendorSendLatency, Receipts, CampaignBatches,
	)
}
