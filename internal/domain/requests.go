package domain

import (
	"errors"
	"time"
)

var ErrMissingFields = errors.New("missing required fields")

type CreateCustomerRequest struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	UserID     string            `json:"userId"`
	UserEmail  string            `json:"userEmail"`
}

func (r CreateCustomerRequest) Validate() error {
	if r.Name == "" || r.Email == "" || r.UserID == "" {
		return ErrMissingFields
	}
	return nil
}

type UpdateCustomerRequest struct {
	CustomerID string            `json:"customerId"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	UserID     string            `json:"userId"`
	UserEmail  string            `json:"userEmail"`
}

func (r UpdateCustomerRequest) Validate() error {
	if r.CustomerID == "" || r.Name == "" || r.Email == "" || r.UserID == "" {
		return ErrMissingFields
	}
	return nil
}

type DeleteCustomerRequest struct {
	CustomerID string `json:"customerId"`
	UserID     string `json:"userId"`
	UserEmail  string `json:"userEmail"`
}

func (r DeleteCustomerRequest) Validate() error {
	if r.CustomerID == "" || r.UserID == "" {
		return ErrMissingFields
	}
	return nil
}

type ImportCustomerRecord struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type ImportCustomersRequest struct {
	Customers []ImportCustomerRecord `json:"customers"`
	UserID    string                 `json:"userId"`
	UserEmail string                 `json:"userEmail"`
}

func (r ImportCustomersRequest) Validate() error {
	if len(r.Customers) == 0 || r.UserID == "" {
		return ErrMissingFields
	}
	return nil
}

type UpdateCustomerStatsRequest struct {
	CustomerID string     `json:"customerId"`
	TotalSpend float64    `json:"totalSpend"`
	VisitCount int        `json:"visitCount"`
	LastVisit  *time.Time `json:"lastVisit,omitempty"`
	UserID     string     `json:"userId"`
	UserEmail  string     `json:"userEmail"`
}

func (r UpdateCustomerStatsRequest) Validate() error {
	if r.CustomerID == "" || r.UserID == "" {
		return ErrMissingFields
	}
	return nil
}

type CreateCampaignRequest struct {
	Name         string          `json:"name"`
	SegmentID    string          `json:"segmentId,omitempty"`
	Template     MessageTemplate `json:"messageTemplate"`
	AudienceSize int             `json:"audienceSize"`
	UserID       string          `json:"userId"`
	UserEmail    string          `json:"userEmail"`
}

func (r CreateCampaignRequest) Validate() error {
	if r.Name == "" || r.UserID == "" || r.Template.Subject == "" || r.Template.Body == "" {
		return ErrMissingFields
	}
	return nil
}

type DeliverCampaignRequest struct {
	CampaignID string `json:"campaignId"`
	UserID     string `json:"userId"`
	UserEmail  string `json:"userEmail"`
}

func (r DeliverCampaignRequest) Validate() error {
	if r.CampaignID == "" || r.UserID == "" {
		return ErrMissingFields
	}
	return nil
}

// QueuedResponse is the immediate accept answer the API gives at enqueue
// time; all downstream failures surface through monitoring, never here.
type QueuedResponse struct {
	JobID  string `json:"jobId"`
	Queue  string `json:"queue"`
	Type   string `json:"type"`
	Status string `json:"status"`
}
