package store

import (
	"fmt"
	"time"

	"engage/internal/domain"
)

// StorageError wraps any persistence failure. Handlers propagate it so the
// consumer loop dead-letters the job; it is recoverable by manual replay.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

type CustomerInsert struct {
	ID         string
	UserID     string
	Name       string
	Email      string
	Phone      string
	Attributes map[string]string
	Now        time.Time
}

type CustomerUpdate struct {
	ID         string
	Name       string
	Email      string
	Phone      string
	Attributes map[string]string
	Now        time.Time
}

type CustomerStatsUpdate struct {
	ID         string
	TotalSpend float64
	VisitCount int
	LastVisit  *time.Time
	Now        time.Time
}

type CampaignInsert struct {
	ID           string
	UserID       string
	Name         string
	SegmentID    string
	Template     domain.MessageTemplate
	AudienceSize int
	Now          time.Time
}

type CampaignStatusUpdate struct {
	ID            string
	Status        domain.CampaignStatus
	StartedAt     *time.Time
	CompletedAt   *time.Time
	FailureReason string
}

type CampaignStatsUpdate struct {
	ID    string
	Stats domain.DeliveryStats
}

// Recipient is the slice of a customer the delivery engine needs.
type Recipient struct {
	CustomerID string
	Name       string
	Email      string
}

type LogUpdate struct {
	MessageID     string
	Status        domain.LogStatus
	DeliveredAt   *time.Time
	FailureReason string
	Metadata      map[string]string
}

// BulkLogUpdate force-marks many logs at once; used on batch-level vendor
// failures where no receipt will ever arrive.
type BulkLogUpdate struct {
	MessageIDs    []string
	Status        domain.LogStatus
	DeliveredAt   *time.Time
	FailureReason string
}
