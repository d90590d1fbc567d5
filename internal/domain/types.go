package domain

import "time"

type CampaignStatus string

const (
	CampaignPending    CampaignStatus = "pending"
	CampaignProcessing CampaignStatus = "processing"
	CampaignCompleted  CampaignStatus = "completed"
	CampaignFailed     CampaignStatus = "failed"
)

type LogStatus string

const (
	LogPending LogStatus = "pending"
	LogSent    LogStatus = "sent"
	LogFailed  LogStatus = "failed"
)

type User struct {
	ID    string
	Email string
	Name  string
}

type Customer struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	TotalSpend float64           `json:"totalSpend"`
	VisitCount int               `json:"visitCount"`
	LastVisit  *time.Time        `json:"lastVisit,omitempty"`
	Deleted    bool              `json:"-"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type MessageTemplate struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	FromName  string `json:"fromName"`
	FromEmail string `json:"fromEmail"`
}

type DeliveryStats struct {
	Sent        int     `json:"sent"`
	Failed      int     `json:"failed"`
	Total       int     `json:"total"`
	SuccessRate float64 `json:"successRate"`
}

type Campaign struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Name            string          `json:"name"`
	SegmentID       string          `json:"segmentId,omitempty"`
	MessageTemplate MessageTemplate `json:"messageTemplate"`
	AudienceSize    int             `json:"audienceSize"`
	Status          CampaignStatus  `json:"status"`
	DeliveryStats   DeliveryStats   `json:"deliveryStats"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
	FailureReason   string          `json:"failureReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// CommunicationLog is the per-recipient delivery record. MessageID correlates
// the vendor's asynchronous receipt back to the row.
type CommunicationLog struct {
	MessageID      string            `json:"messageId"`
	CampaignID     string            `json:"campaignId"`
	CustomerID     string            `json:"customerId"`
	RecipientEmail string            `json:"recipientEmail"`
	Subject        string            `json:"subject"`
	Body           string            `json:"body"`
	Status         LogStatus         `json:"status"`
	DeliveredAt    *time.Time        `json:"deliveredAt,omitempty"`
	FailureReason  string            `json:"failureReason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Receipt is the inbound delivery-receipt payload. In production a real
// vendor webhook produces these; here the simulator does.
type Receipt struct {
	MessageID       string     `json:"messageId"`
	Status          LogStatus  `json:"status"`
	DeliveredAt     *time.Time `json:"deliveredAt,omitempty"`
	FailureReason   string     `json:"failureReason,omitempty"`
	VendorMessageID string     `json:"vendorMessageId,omitempty"`
	Recipient       string     `json:"recipient,omitempty"`
	CampaignID      string     `json:"campaignId,omitempty"`
	CustomerID      string     `json:"customerId,omitempty"`
}
