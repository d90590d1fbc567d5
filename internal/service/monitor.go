package service

import (
	"context"
	"fmt"
	"time"

	"engage/internal/broker"
	"engage/internal/domain"
	"engage/internal/util"
)

type BrokerMonitor interface {
	QueueStats(ctx context.Context, queue string) (broker.QueueStats, error)
	HealthCheck(ctx context.Context) broker.Health
}

type LogCounter interface {
	GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error)
	CountCommunicationLogsByStatus(ctx context.Context, campaignID string) (map[domain.LogStatus]int, error)
}

// SystemStatus is a point-in-time, non-transactional snapshot across all
// named queues.
type SystemStatus struct {
	Broker      broker.Health                `json:"broker"`
	Queues      map[string]broker.QueueStats `json:"queues"`
	Totals      broker.QueueStats            `json:"totals"`
	SuccessRate float64                      `json:"successRate"`
	CheckedAt   time.Time                    `json:"checkedAt"`
}

// CampaignDeliveries pairs the frozen campaign stats with the live,
// receipt-driven breakdown from communication logs.
type CampaignDeliveries struct {
	Campaign  domain.Campaign          `json:"campaign"`
	Breakdown map[domain.LogStatus]int `json:"breakdown"`
}

type MonitorService struct {
	Broker BrokerMonitor
	Logs   LogCounter
	Queues []string
}

func (m *MonitorService) QueueStats(ctx context.Context, queue string) (broker.QueueStats, error) {
	return m.Broker.QueueStats(ctx, queue)
}

func (m *MonitorService) BrokerHealth(ctx context.Context) broker.Health {
	return m.Broker.HealthCheck(ctx)
}

func (m *MonitorService) SystemStatus(ctx context.Context) (SystemStatus, error) {
	status := SystemStatus{
		Broker:    m.Broker.HealthCheck(ctx),
		Queues:    make(map[string]broker.QueueStats, len(m.Queues)),
		CheckedAt: util.NowUTC(),
	}
	for _, q := range m.Queues {
		st, err := m.Broker.QueueStats(ctx, q)
		if err != nil {
			return SystemStatus{}, err
		}
		status.Queues[q] = st
		status.Totals.Pending += st.Pending
		status.Totals.Failed += st.Failed
		status.Totals.Total += st.Total
	}
	// Success rate over observable history: everything not dead-lettered.
	if status.Totals.Total > 0 {
		status.SuccessRate = float64(status.Totals.Total-status.Totals.Failed) / float64(status.Totals.Total) * 100
	}
	return status, nil
}

func (m *MonitorService) CampaignDeliveries(ctx context.Context, campaignID string) (CampaignDeliveries, error) {
	campaign, found, err := m.Logs.GetCampaign(ctx, campaignID)
	if err != nil {
		return CampaignDeliveries{}, err
	}
	if !found {
		return CampaignDeliveries{}, fmt.Errorf("campaign %s: %w", campaignID, ErrNotFound)
	}
	breakdown, err := m.Logs.CountCommunicationLogsByStatus(ctx, campaignID)
	if err != nil {
		return CampaignDeliveries{}, err
	}
	return CampaignDeliveries{Campaign: campaign, Breakdown: breakdown}, nil
}
